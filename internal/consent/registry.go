package consent

import "sort"

// EntityID identifies a simulated entity.
type EntityID string

// Registry owns the preference stores of all entities, keyed by entity id.
// It is not safe for concurrent use; the world loop is its only caller.
type Registry struct {
	init   *Initializer
	stores map[EntityID]*Store
}

func NewRegistry(init *Initializer) *Registry {
	return &Registry{
		init:   init,
		stores: map[EntityID]*Store{},
	}
}

// Attach creates the store for id, seeded with initial (usually persisted
// profile rows), then runs the initializer over it. Attaching an id that
// already has a store returns the existing store untouched.
func (r *Registry) Attach(id EntityID, initial PreferenceMap) *Store {
	if s, ok := r.stores[id]; ok {
		return s
	}
	s := NewStore(initial)
	r.stores[id] = s
	if r.init != nil {
		r.init.Populate(s)
	}
	return s
}

func (r *Registry) Detach(id EntityID) {
	delete(r.stores, id)
}

// Store returns the entity's store, or nil when none is attached.
func (r *Registry) Store(id EntityID) *Store {
	if r == nil {
		return nil
	}
	return r.stores[id]
}

// IDs returns the attached entity ids in sorted order.
func (r *Registry) IDs() []EntityID {
	out := make([]EntityID, 0, len(r.stores))
	for id := range r.stores {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetCatalog replaces the catalog the registry's initializer enumerates.
func (r *Registry) SetCatalog(c Catalog) {
	if r.init == nil {
		r.init = NewInitializer(c)
		return
	}
	r.init.SetCatalog(c)
}

// Refresh re-runs the initializer against every store, e.g. after the
// catalog was reloaded. Returns the total number of entries added.
func (r *Registry) Refresh() int {
	if r.init == nil {
		return 0
	}
	n := 0
	for _, id := range r.IDs() {
		n += r.init.Populate(r.stores[id])
	}
	return n
}
