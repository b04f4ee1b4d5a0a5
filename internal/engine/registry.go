package engine

import "sort"

// Registry maps skill identifiers to implementations. It is built
// once at startup and read-only afterwards.
type Registry struct {
	skills map[string]Skill
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register binds a skill identifier to an implementation. Later
// registrations for the same identifier win.
func (r *Registry) Register(id string, skill Skill) {
	r.skills[id] = skill
}

// Lookup returns the skill for an identifier.
func (r *Registry) Lookup(id string) (Skill, bool) {
	s, ok := r.skills[id]
	return s, ok
}

// Has reports whether an identifier is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.skills[id]
	return ok
}

// IDs returns registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
