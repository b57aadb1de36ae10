// Package sanitize cleans untrusted rich-text task descriptions before
// they reach presentation.
package sanitize

import "github.com/microcosm-cc/bluemonday"

type Sanitizer interface {
	Sanitize(html string) string
}

// Policy wraps a bluemonday policy. The zero value is not usable; use New.
type Policy struct {
	policy *bluemonday.Policy
}

var _ Sanitizer = (*Policy)(nil)

// New returns the user-generated-content policy: formatting, lists and
// links survive, scripts, handlers and styles do not.
func New() *Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Policy{policy: p}
}

func (p *Policy) Sanitize(html string) string {
	return p.policy.Sanitize(html)
}

// Func adapts a plain function to Sanitizer.
type Func func(string) string

func (f Func) Sanitize(html string) string {
	return f(html)
}
