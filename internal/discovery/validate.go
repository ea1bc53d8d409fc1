package discovery

import (
	"strings"
	"unicode"

	"github.com/influo/discovery/internal/avatar"
	"github.com/influo/discovery/models"
)

// Rejection reasons reported to metrics.
const (
	rejectName            = "implausible_name"
	rejectPlatforms       = "no_usable_platform"
	rejectMinFollowers    = "below_min_followers"
	rejectFollowerCeiling = "follower_ceiling"
	rejectTagRelevance    = "tag_relevance"
	rejectDuplicateHandle = "duplicate_handle"
)

// buildBatchItems validates, deduplicates, and converts raw candidates into
// profiles carrying fresh local identifiers. queryTags is the expanded
// canonical tag set of the originating query; reject is called once per
// dropped candidate with the policy reason.
func buildBatchItems(cands []rawCandidate, queryTags []string, avatars avatar.Resolver, reject func(reason string)) []models.CreatorProfile {
	var out []models.CreatorProfile
	seenHandles := make(map[string]struct{}, len(cands))

	for _, c := range cands {
		profile, reason, ok := validateCandidate(c, queryTags)
		if !ok {
			reject(reason)
			continue
		}
		key := strings.ToLower(profile.Handle)
		if _, dup := seenHandles[key]; dup {
			reject(rejectDuplicateHandle)
			continue
		}
		seenHandles[key] = struct{}{}

		profile.ID = NewID()
		if profile.AvatarURL == "" && avatars != nil {
			profile.AvatarURL = avatars.Resolve(profile.Name, profile.Handle)
		}
		out = append(out, profile)
	}
	return out
}

// validateCandidate applies the hard policy rules. One follower-ceiling
// violation on any platform rejects the whole candidate.
func validateCandidate(c rawCandidate, queryTags []string) (models.CreatorProfile, string, bool) {
	if !plausibleName(c.Name) {
		return models.CreatorProfile{}, rejectName, false
	}

	var platforms []models.PlatformStat
	for _, p := range c.Platforms {
		if p.Followers > models.FollowerCeiling {
			return models.CreatorProfile{}, rejectFollowerCeiling, false
		}
		if strings.TrimSpace(p.Platform) == "" || strings.TrimSpace(p.Handle) == "" {
			continue
		}
		p.Handle = strings.TrimPrefix(p.Handle, "@")
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		return models.CreatorProfile{}, rejectPlatforms, false
	}

	total := c.TotalFollowers
	if total == 0 {
		for _, p := range platforms {
			total += p.Followers
		}
	}
	if total < models.MinTotalFollowers {
		return models.CreatorProfile{}, rejectMinFollowers, false
	}

	// Relevance is only enforced when the query narrowed by tags AND the
	// candidate supplied any topic at all. A generator that omitted the tag
	// fields entirely is given the benefit of the doubt.
	supplied := ExpandTags(c.suppliedTopics())
	if len(queryTags) > 0 && len(supplied) > 0 {
		related := false
		for _, t := range supplied {
			if RelatedToAny(t, queryTags) {
				related = true
				break
			}
		}
		if !related {
			return models.CreatorProfile{}, rejectTagRelevance, false
		}
	}

	handle := strings.TrimPrefix(strings.TrimSpace(c.Handle), "@")
	if handle == "" {
		handle = platforms[0].Handle
	}

	return models.CreatorProfile{
		Name:           strings.TrimSpace(c.Name),
		Handle:         handle,
		AvatarURL:      strings.TrimSpace(c.AvatarURL),
		Bio:            strings.TrimSpace(c.Bio),
		Location:       strings.TrimSpace(c.Location),
		Platforms:      platforms,
		TotalFollowers: total,
		Tags:           supplied,
		ContentTypes:   trimAll(c.ContentTypes),
		Demographics: models.Demographics{
			Gender:           c.Gender,
			AgeRange:         c.AgeRange,
			AudienceLocation: c.AudienceLocation,
			EngagementRate:   c.EngagementRate,
			Authenticity:     c.Authenticity,
		},
		Provenance: models.ProvenanceGenerated,
	}, "", true
}

// plausibleName requires at least two words that each contain a letter.
func plausibleName(name string) bool {
	words := strings.Fields(name)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if !strings.ContainsFunc(w, unicode.IsLetter) {
			return false
		}
	}
	return true
}
