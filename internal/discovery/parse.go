package discovery

import (
	"encoding/json"
	"errors"

	"github.com/influo/discovery/internal/helpers"
	"github.com/influo/discovery/models"
)

// rawCandidate is the generator's view of a creator before validation.
type rawCandidate struct {
	Name             string                `json:"name"`
	Handle           string                `json:"handle"`
	Bio              string                `json:"bio"`
	Location         string                `json:"location"`
	AvatarURL        string                `json:"avatarUrl"`
	Platforms        []models.PlatformStat `json:"platforms"`
	TotalFollowers   int64                 `json:"totalFollowers"`
	Tags             []string              `json:"tags"`
	Categories       []string              `json:"categories"`
	Topics           []string              `json:"topics"`
	ContentTypes     []string              `json:"contentTypes"`
	Gender           string                `json:"gender"`
	AgeRange         string                `json:"ageRange"`
	AudienceLocation string                `json:"audienceLocation"`
	EngagementRate   float64               `json:"engagementRate"`
	Authenticity     float64               `json:"authenticity"`
}

// suppliedTopics flattens whichever of the tag-ish fields the generator
// chose to populate.
func (c rawCandidate) suppliedTopics() []string {
	out := make([]string, 0, len(c.Tags)+len(c.Categories)+len(c.Topics))
	out = append(out, c.Tags...)
	out = append(out, c.Categories...)
	out = append(out, c.Topics...)
	return out
}

type candidateEnvelope struct {
	Creators []rawCandidate `json:"creators"`
}

// parseAttempt is one tier of the untrusted-output recovery pipeline.
type parseAttempt func(string) ([]rawCandidate, error)

// parseCandidates runs the parse tiers in order; the first success wins and
// total failure yields an empty set, never an error. The tiers are: strict
// parse, character-level repair then reparse, then extraction of the largest
// object-looking substring.
func parseCandidates(raw string) []rawCandidate {
	attempts := []parseAttempt{
		parseStrict,
		parseSanitized,
		parseExtracted,
	}
	for _, attempt := range attempts {
		if out, err := attempt(raw); err == nil {
			return out
		}
	}
	return nil
}

func parseStrict(raw string) ([]rawCandidate, error) {
	var env candidateEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	if env.Creators == nil {
		// A well-formed object that isn't our schema is still a failure;
		// let a later tier try to dig the real payload out.
		return nil, errors.New("no creators field")
	}
	return env.Creators, nil
}

func parseSanitized(raw string) ([]rawCandidate, error) {
	return parseStrict(helpers.SanitizeModelJSON(raw))
}

func parseExtracted(raw string) ([]rawCandidate, error) {
	obj, err := helpers.ExtractJSONObject(helpers.SanitizeModelJSON(raw))
	if err != nil {
		return nil, err
	}
	return parseStrict(obj)
}
