package discovery

import (
	"reflect"
	"testing"
)

func TestSingularize(t *testing.T) {
	cases := map[string]string{
		"Sports":       "Sport",
		"Martial Arts": "Martial Art",
		"cars":         "car",
		"glass":        "glass",
		"cactus":       "cactus",
		"tennis":       "tennis",
		"gas":          "gas", // too short to strip
		"Fitness":      "Fitness",
		"":             "",
	}
	for in, want := range cases {
		if got := Singularize(in); got != want {
			t.Fatalf("Singularize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSingularizeIdempotent(t *testing.T) {
	for _, s := range []string{"Sports", "Martial Arts", "dresses", "videos"} {
		once := Singularize(s)
		twice := Singularize(once)
		if once != twice {
			t.Fatalf("Singularize not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestCanonicalTag(t *testing.T) {
	cases := map[string]string{
		"  sports ":    "Sport",
		"MARTIAL arts": "Martial Art",
		"racing":       "Racing",
	}
	for in, want := range cases {
		if got := CanonicalTag(in); got != want {
			t.Fatalf("CanonicalTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandTagsDedup(t *testing.T) {
	got := ExpandTags([]string{"Sports", "sport", "SPORTS", "Racing"})
	want := []string{"Sport", "Racing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpandTags = %v, want %v", got, want)
	}
}

func TestRelated(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Racing", "Drag Racing", true},
		{"car", "Supercars", true},
		{"Fitness", "Fit", true},
		{"Cooking", "Finance", false},
		{"", "Racing", false},
		{"123", "456", false}, // no letters on either side
	}
	for _, c := range cases {
		if got := Related(c.a, c.b); got != c.want {
			t.Fatalf("Related(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestRelatedToAny(t *testing.T) {
	set := []string{"Sport", "Travel"}
	if !RelatedToAny("Motorsport", set) {
		t.Fatal("Motorsport should relate to Sport")
	}
	if RelatedToAny("Baking", set) {
		t.Fatal("Baking should not relate to Sport or Travel")
	}
}
