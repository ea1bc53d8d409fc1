package server

import (
	"testing"
	"time"
)

func TestIsDueFirstRun(t *testing.T) {
	for _, spec := range []string{"@hourly", "@daily", "*/5 * * * *", "garbage"} {
		if !isDue(spec, nil) {
			t.Fatalf("first run must always be due (%q)", spec)
		}
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatal("ten minutes after an hourly run is not due")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Fatal("two hours after an hourly run is due")
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-6 * time.Hour)
	if isDue("@daily", &recent) {
		t.Fatal("six hours after a daily run is not due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatal("25 hours after a daily run is due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	old := time.Now().Add(-10 * time.Minute)
	if !isDue("*/5 * * * *", &old) {
		t.Fatal("a 5-minute schedule with a 10-minute-old run is due")
	}
	justNow := time.Now()
	if isDue("*/5 * * * *", &justNow) {
		t.Fatal("a schedule that just ran is not due")
	}
}
