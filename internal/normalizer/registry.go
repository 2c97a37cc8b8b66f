package normalizer

import "github.com/telhawk-systems/flowhook/internal/models"

// Match is the result of a matcher claiming a payload.
type Match struct {
	Provider   models.Provider
	SessionKey string
	// Message is nil when the provider matched but carried no text field.
	Message *string
}

// Matcher recognises one provider's webhook signature.
type Matcher interface {
	Provider() models.Provider
	Match(root Object) (Match, bool)
}

// Registry holds matchers in priority order.
type Registry struct {
	items []Matcher
}

// NewRegistry constructs a registry evaluated in the given order.
func NewRegistry(items ...Matcher) *Registry {
	return &Registry{items: items}
}

// Find returns the match of the first matcher that claims root.
func (r *Registry) Find(root Object) (Match, bool) {
	if r == nil {
		return Match{}, false
	}
	for _, m := range r.items {
		if match, ok := m.Match(root); ok {
			return match, true
		}
	}
	return Match{}, false
}

// Providers lists the registered providers in evaluation order.
func (r *Registry) Providers() []models.Provider {
	if r == nil {
		return nil
	}
	out := make([]models.Provider, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m.Provider())
	}
	return out
}

// DefaultMatchers returns the production matcher order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		ChatwootMatcher{},
		DialogyMatcher{},
		EvolutionMatcher{},
	}
}
