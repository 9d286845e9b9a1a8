package model

import (
	"context"
	"errors"
	"fmt"
)

// Actor identifies the authenticated user performing a core operation. Every
// core operation takes an explicit Actor parameter; there is no ambient
// authentication state.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role Role   `json:"role"`
}

// Validate checks that the actor carries an ID and a known role.
func (a Actor) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, fmt.Errorf("actor ID is required"))
	}
	if _, ok := ParseRole(string(a.Role)); !ok {
		errs = append(errs, fmt.Errorf("unknown role %q", a.Role))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RequestContext carries identity and tracing information for the lifetime of
// an authenticated request. It is immutable after construction and safe for
// concurrent reads.
type RequestContext struct {
	SubjectID     string
	Email         string
	Role          Role
	DisplayName   string
	Claims        map[string]any
	CorrelationID string
	TraceID       string
}

// Actor returns the Actor represented by this request context.
func (rc *RequestContext) Actor() Actor {
	return Actor{ID: rc.SubjectID, Name: rc.DisplayName, Role: rc.Role}
}

// Validate checks that all mandatory fields are present.
func (rc *RequestContext) Validate() error {
	if rc.SubjectID == "" {
		return fmt.Errorf("SubjectID is required")
	}
	return rc.Actor().Validate()
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns
// nil if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
