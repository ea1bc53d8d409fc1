package models

import (
	"errors"
	"time"
)

// ErrCreatorNotFound is returned when a creator profile is not found
var ErrCreatorNotFound = errors.New("creator not found")

// Provenance marks where a profile came from.
type Provenance string

const (
	ProvenanceAuthoritative Provenance = "authoritative"
	ProvenanceGenerated     Provenance = "generated"
)

// Source is the outward-facing provenance tag on a response page.
type Source string

const (
	SourceDB Source = "db"
	SourceAI Source = "ai"
)

// FollowerCeiling is the hard per-platform follower cap for any profile
// reachable through the generative path.
const FollowerCeiling = 999_999

// MinTotalFollowers is the minimum aggregate follower count a generated
// candidate must carry to be accepted.
const MinTotalFollowers = 10_000

// PlatformStat is one social platform presence of a creator.
type PlatformStat struct {
	Platform  string `json:"platform"`
	Handle    string `json:"handle"`
	Followers int64  `json:"followerCount"`
}

// Demographics summarises a creator's audience.
type Demographics struct {
	Gender           string  `json:"gender,omitempty"`
	AgeRange         string  `json:"ageRange,omitempty"`
	AudienceLocation string  `json:"audienceLocation,omitempty"`
	EngagementRate   float64 `json:"engagementRate,omitempty"`
	Authenticity     float64 `json:"authenticity,omitempty"`
}

// CreatorProfile is one candidate result of a discovery query.
type CreatorProfile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Handle         string         `json:"handle"`
	AvatarURL      string         `json:"avatarUrl,omitempty"`
	Bio            string         `json:"bio,omitempty"`
	Location       string         `json:"location,omitempty"`
	Platforms      []PlatformStat `json:"platforms"`
	TotalFollowers int64          `json:"totalFollowers"`
	Tags           []string       `json:"tags"`
	ContentTypes   []string       `json:"contentTypes,omitempty"`
	Demographics   Demographics   `json:"demographics"`
	Provenance     Provenance     `json:"provenance"`
	CreatedAt      time.Time      `json:"createdAt,omitempty"`
}

// ProvenanceCounts reports how many items on a page came from each path.
type ProvenanceCounts struct {
	DB int `json:"db"`
	AI int `json:"ai"`
}

// SearchResponse is the paginated payload of the discovery endpoint.
type SearchResponse struct {
	Items          []CreatorProfile `json:"items"`
	NormalizedTags []string         `json:"normalizedTags"`
	RelatedTags    []string         `json:"relatedTags"`
	NextCursor     *string          `json:"nextCursor"`
	TotalItems     int              `json:"totalItems"`
	HasMore        bool             `json:"hasMore"`
	EndNote        string           `json:"endNote,omitempty"`
	Source         Source           `json:"source"`
	Provenance     ProvenanceCounts `json:"provenance"`
}
