package discovery

import (
	"fmt"
	"strings"

	"github.com/influo/discovery/models"
)

const generationSystemPrompt = `
You are a creator discovery assistant for an influencer marketplace. Your role is to propose real-feeling, plausible social media creators matching the requested criteria.

RULES:
1. Every creator must be plausible: a realistic multi-word display name and a consistent handle
2. Every platform entry must include the platform name, the handle on that platform, and a follower count
3. No platform may exceed %d followers; creators below %d total followers are not useful
4. Bios are %d to %d characters, written in the creator's voice
5. Never fabricate a field you cannot plausibly fill; omit it instead
6. Never repeat a creator from the exclusion list, under any spelling or handle variation

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following format:
{
  "creators": [
    {
      "name": "display name",
      "handle": "primary_handle",
      "bio": "short bio",
      "location": "city, country",
      "platforms": [{"platform": "instagram", "handle": "handle_on_platform", "followerCount": 123456}],
      "totalFollowers": 123456,
      "tags": ["array", "of", "topic", "tags"],
      "contentTypes": ["reels", "shorts"],
      "gender": "female|male|mixed",
      "ageRange": "18-24",
      "audienceLocation": "city or country",
      "engagementRate": 4.2,
      "authenticity": 0.93
    }
  ]
}
Do not include any other text or explanation.
`

// buildPrompt assembles the structured-output request for one pipeline run.
// count is how many candidates to ask for; exclusions lists known creators
// the generator must not repeat.
func buildPrompt(f Filter, count int, exclusions []string) (system, user string) {
	system = fmt.Sprintf(generationSystemPrompt,
		models.FollowerCeiling, models.MinTotalFollowers, bioMinLen, bioMaxLen)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d creators matching:\n", count)
	if f.Term != "" {
		fmt.Fprintf(&b, "Search term: %q\n", f.Term)
	}
	if len(f.Tags) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(f.Tags, ", "))
	}
	if f.Location != "" {
		fmt.Fprintf(&b, "Creator location: %s\n", f.Location)
	}
	if f.Gender != "" {
		fmt.Fprintf(&b, "Audience gender: %s\n", f.Gender)
	}
	if f.AgeRange != "" {
		fmt.Fprintf(&b, "Audience age range: %s\n", f.AgeRange)
	}
	if f.AudienceLocation != "" {
		fmt.Fprintf(&b, "Audience location: %s\n", f.AudienceLocation)
	}
	if len(f.Platforms) > 0 {
		fmt.Fprintf(&b, "Platforms: %s\n", strings.Join(f.Platforms, ", "))
	}
	if len(f.ContentTypes) > 0 {
		fmt.Fprintf(&b, "Content types: %s\n", strings.Join(f.ContentTypes, ", "))
	}
	if f.MinFollowers > 0 || f.MaxFollowers > 0 {
		fmt.Fprintf(&b, "Total followers between %d and %d\n", f.MinFollowers, orCeiling(f.MaxFollowers))
	}
	if f.MinEngagement > 0 {
		fmt.Fprintf(&b, "Engagement rate at least %.1f%%\n", f.MinEngagement)
	}
	if len(exclusions) > 0 {
		b.WriteString("\nEXCLUSION LIST (do not repeat any of these creators):\n")
		for _, e := range exclusions {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return system, b.String()
}

const (
	bioMinLen = 40
	bioMaxLen = 200
)

func orCeiling(max int64) int64 {
	if max > 0 {
		return max
	}
	return models.FollowerCeiling
}
