package discovery

import (
	"strings"
	"testing"

	"github.com/influo/discovery/internal/avatar"
	"github.com/influo/discovery/models"
)

func plat(name, handle string, followers int64) models.PlatformStat {
	return models.PlatformStat{Platform: name, Handle: handle, Followers: followers}
}

func okCandidate() rawCandidate {
	return rawCandidate{
		Name:      "Maya Torres",
		Handle:    "@mayatorres",
		Bio:       "Daily strength training and mobility work for busy people.",
		Platforms: []models.PlatformStat{plat("instagram", "mayatorres", 85_000)},
		Tags:      []string{"Fitness"},
	}
}

func TestValidateCandidateAccepts(t *testing.T) {
	p, reason, ok := validateCandidate(okCandidate(), []string{"Fitness"})
	if !ok {
		t.Fatalf("valid candidate rejected: %s", reason)
	}
	if p.Handle != "mayatorres" {
		t.Fatalf("leading @ not stripped: %q", p.Handle)
	}
	if p.TotalFollowers != 85_000 {
		t.Fatalf("total not summed from platforms: %d", p.TotalFollowers)
	}
	if p.Provenance != models.ProvenanceGenerated {
		t.Fatalf("wrong provenance: %q", p.Provenance)
	}
}

func TestValidateCandidateSingleWordName(t *testing.T) {
	c := okCandidate()
	c.Name = "Maya"
	if _, reason, ok := validateCandidate(c, nil); ok || reason != rejectName {
		t.Fatalf("single-word name must be rejected, got ok=%v reason=%s", ok, reason)
	}
}

func TestValidateCandidateFollowerCeiling(t *testing.T) {
	c := okCandidate()
	c.Platforms = append(c.Platforms, plat("tiktok", "mayatorres", 1_050_000))
	if _, reason, ok := validateCandidate(c, nil); ok || reason != rejectFollowerCeiling {
		t.Fatalf("ceiling violation must reject the whole candidate, got ok=%v reason=%s", ok, reason)
	}
}

func TestValidateCandidateCeilingCheckedOnIncompleteEntry(t *testing.T) {
	// An entry missing its handle is normally dropped, but an implausible
	// follower count on it still condemns the candidate.
	c := okCandidate()
	c.Platforms = append(c.Platforms, plat("tiktok", "", 2_000_000))
	if _, reason, ok := validateCandidate(c, nil); ok || reason != rejectFollowerCeiling {
		t.Fatalf("got ok=%v reason=%s", ok, reason)
	}
}

func TestValidateCandidateDropsIncompletePlatforms(t *testing.T) {
	c := okCandidate()
	c.Platforms = append(c.Platforms, plat("", "orphan", 5_000), plat("youtube", "", 5_000))
	p, _, ok := validateCandidate(c, nil)
	if !ok {
		t.Fatal("candidate with one complete platform must pass")
	}
	if len(p.Platforms) != 1 {
		t.Fatalf("incomplete platform entries must be dropped: %+v", p.Platforms)
	}
}

func TestValidateCandidateNoCompletePlatform(t *testing.T) {
	c := okCandidate()
	c.Platforms = []models.PlatformStat{plat("", "x", 50_000)}
	if _, reason, ok := validateCandidate(c, nil); ok || reason != rejectPlatforms {
		t.Fatalf("got ok=%v reason=%s", ok, reason)
	}
}

func TestValidateCandidateMinFollowers(t *testing.T) {
	c := okCandidate()
	c.Platforms = []models.PlatformStat{plat("instagram", "mayatorres", 4_000)}
	if _, reason, ok := validateCandidate(c, nil); ok || reason != rejectMinFollowers {
		t.Fatalf("got ok=%v reason=%s", ok, reason)
	}
}

func TestValidateCandidateSuppliedTotalWins(t *testing.T) {
	c := okCandidate()
	c.TotalFollowers = 120_000
	p, _, ok := validateCandidate(c, nil)
	if !ok || p.TotalFollowers != 120_000 {
		t.Fatalf("supplied total must be kept: ok=%v total=%d", ok, p.TotalFollowers)
	}
}

func TestValidateCandidateTagRelevance(t *testing.T) {
	c := okCandidate()
	c.Tags = []string{"Woodworking"}
	if _, reason, ok := validateCandidate(c, []string{"Fitness"}); ok || reason != rejectTagRelevance {
		t.Fatalf("unrelated tags must reject, got ok=%v reason=%s", ok, reason)
	}

	// Fuzzy containment counts as related.
	c.Tags = []string{"Fitness Coaching"}
	if _, reason, ok := validateCandidate(c, []string{"Fitness"}); !ok {
		t.Fatalf("related tag rejected: %s", reason)
	}

	// No supplied topics at all: leniency applies.
	c.Tags = nil
	if _, reason, ok := validateCandidate(c, []string{"Fitness"}); !ok {
		t.Fatalf("topic-less candidate must pass on leniency: %s", reason)
	}
}

func TestBuildBatchItemsDedupAndAvatars(t *testing.T) {
	a := okCandidate()
	b := okCandidate()
	b.Handle = "MAYATORRES" // same handle, different case
	c := okCandidate()
	c.Handle = "other.creator"
	c.Name = "Jon Mbeki"

	var reasons []string
	items := buildBatchItems([]rawCandidate{a, b, c}, []string{"Fitness"}, avatar.NewResolver(""), func(r string) {
		reasons = append(reasons, r)
	})
	if len(items) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(items))
	}
	if len(reasons) != 1 || reasons[0] != rejectDuplicateHandle {
		t.Fatalf("expected one duplicate_handle rejection, got %v", reasons)
	}
	for _, it := range items {
		if it.ID == "" {
			t.Fatal("items must carry fresh ids")
		}
		if it.AvatarURL == "" || !strings.Contains(it.AvatarURL, "seed=") {
			t.Fatalf("avatar not backfilled: %q", it.AvatarURL)
		}
	}
	if items[0].ID >= items[1].ID {
		t.Fatalf("ids should be time-ordered: %q, %q", items[0].ID, items[1].ID)
	}
}

func TestPlausibleName(t *testing.T) {
	cases := map[string]bool{
		"Maya Torres":     true,
		"Maya":            false,
		"":                false,
		"123 456":         false,
		"Jean-Luc Picard": true,
	}
	for in, want := range cases {
		if got := plausibleName(in); got != want {
			t.Fatalf("plausibleName(%q) = %v, want %v", in, got, want)
		}
	}
}
