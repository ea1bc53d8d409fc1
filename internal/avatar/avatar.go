package avatar

import (
	"fmt"
	"net/url"
)

// Resolver supplies an avatar URL for a profile sketch that arrived without
// one. The discovery engine only consumes this contract; serving or storing
// the image is someone else's job.
type Resolver interface {
	Resolve(name, handle string) string
}

const defaultBaseURL = "https://api.dicebear.com/9.x/initials/svg"

// initialsResolver builds a deterministic initials avatar from the display
// name, falling back to the handle when the name is empty.
type initialsResolver struct {
	baseURL string
}

func NewResolver(baseURL string) Resolver {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &initialsResolver{baseURL: baseURL}
}

func (r *initialsResolver) Resolve(name, handle string) string {
	seed := name
	if seed == "" {
		seed = handle
	}
	return fmt.Sprintf("%s?seed=%s", r.baseURL, url.QueryEscape(seed))
}
