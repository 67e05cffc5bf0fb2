package platform

import (
	"context"
	"fmt"
	"sort"
)

// Content is the platform-agnostic payload: primary text plus stored media
// references the adapter resolves through the media store.
type Content struct {
	Text  string
	Title string
	Media []string
}

// Credential is the decrypted credential for exactly one adapter call. It
// must not be cached, logged, or carried past the call it was resolved for.
type Credential struct {
	AccountID   string
	AccessToken string
}

type PublishResult struct {
	PlatformPostID string
	// Warning carries a non-fatal caveat on success, e.g. truncation.
	Warning string
	// TierHint is a platform-observed account capability fact discovered as
	// a side effect of publishing.
	TierHint string
}

// PublishError is the typed failure every adapter raises. Its message is
// recorded on the post verbatim, so it has to stand on its own for operators.
type PublishError struct {
	Platform string
	Message  string
}

func (e *PublishError) Error() string {
	return e.Message
}

func Errorf(platform, format string, args ...any) *PublishError {
	return &PublishError{Platform: platform, Message: fmt.Sprintf(format, args...)}
}

// Adapter hides one platform's payload shape, media upload sequencing and
// authentication convention behind the uniform publish contract.
type Adapter interface {
	Platform() string
	Publish(ctx context.Context, content Content, cred Credential) (*PublishResult, error)
}

// MediaStore is what adapters need from media resolution.
type MediaStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, string, error)
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// Registry holds the adapters enabled by configuration. Selecting a platform
// with no registered adapter is a configuration error surfaced before any
// network call.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

func (r *Registry) Lookup(platform string) (Adapter, error) {
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("platform %q is not configured", platform)
	}
	return adapter, nil
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
