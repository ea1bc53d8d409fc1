package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// SearchRequest is the raw inbound query before canonicalization.
type SearchRequest struct {
	Term             string
	Tags             []string
	Name             string
	Location         string
	Gender           string
	AgeRange         string
	AudienceLocation string
	Platforms        []string
	ContentTypes     []string
	MinFollowers     int64
	MaxFollowers     int64
	MinEngagement    float64
	MinAuthenticity  float64
	Cursor           string
	Limit            int
	Generative       bool
}

// Filter is the structured, normalized form handed to the store layer.
type Filter struct {
	Term             string
	Tags             []string
	Name             string
	Location         string
	Gender           string
	AgeRange         string
	AudienceLocation string
	Platforms        []string
	ContentTypes     []string
	MinFollowers     int64
	MaxFollowers     int64
	MinEngagement    float64
	MinAuthenticity  float64
	Cursor           string
	Limit            int
}

// Discriminating reports whether the request narrows the result set at all.
// An unscoped generative request degrades to the authoritative path.
func (r SearchRequest) Discriminating() bool {
	return strings.TrimSpace(r.Term) != "" ||
		len(ExpandTags(r.Tags)) > 0 ||
		strings.TrimSpace(r.Name) != "" ||
		strings.TrimSpace(r.Location) != "" ||
		r.Gender != "" || r.AgeRange != "" || r.AudienceLocation != "" ||
		len(r.Platforms) > 0 || len(r.ContentTypes) > 0 ||
		r.MinFollowers > 0 || r.MaxFollowers > 0 ||
		r.MinEngagement > 0 || r.MinAuthenticity > 0
}

// Canonicalize normalizes the request into a deterministic cache/coordination
// key and a structured filter. Two logically identical requests (same term and
// tags under any casing or order) canonicalize to the same key.
func (r SearchRequest) Canonicalize(maxLimit, defaultLimit int) (string, Filter) {
	term := strings.ToLower(strings.TrimSpace(r.Term))
	tags := ExpandTags(r.Tags)

	limit := r.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	f := Filter{
		Term:             term,
		Tags:             tags,
		Name:             strings.TrimSpace(r.Name),
		Location:         strings.TrimSpace(r.Location),
		Gender:           strings.TrimSpace(r.Gender),
		AgeRange:         strings.TrimSpace(r.AgeRange),
		AudienceLocation: strings.TrimSpace(r.AudienceLocation),
		Platforms:        lowerAll(r.Platforms),
		ContentTypes:     trimAll(r.ContentTypes),
		MinFollowers:     r.MinFollowers,
		MaxFollowers:     r.MaxFollowers,
		MinEngagement:    r.MinEngagement,
		MinAuthenticity:  r.MinAuthenticity,
		Cursor:           validCursor(r.Cursor),
		Limit:            limit,
	}

	generative := r.Generative && r.Discriminating()
	return canonicalKey(term, tags, generative), f
}

// canonicalKey builds the deterministic coordination key. The generative flag
// participates so cached generated batches never shadow authoritative pages.
func canonicalKey(term string, tags []string, generative bool) string {
	sorted := make([]string, len(tags))
	for i, t := range tags {
		sorted[i] = strings.ToLower(t)
	}
	sort.Strings(sorted)
	ai := 0
	if generative {
		ai = 1
	}
	return fmt.Sprintf("term=%s|tags=%s|ai=%d", term, strings.Join(sorted, ","), ai)
}

// validCursor drops malformed cursors so pagination restarts from the
// beginning instead of failing the request.
func validCursor(cursor string) string {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return ""
	}
	if _, err := uuid.Parse(cursor); err != nil {
		return ""
	}
	return cursor
}

func lowerAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
