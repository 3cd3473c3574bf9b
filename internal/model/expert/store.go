package expert

// Store exposes expert retrieval for HTTP handlers.
type Store interface {
	List() []Expert
	FindByID(id string) (Expert, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Expert
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied experts.
func NewMemoryStore(items []Expert) *MemoryStore {
	return &MemoryStore{items: append([]Expert(nil), items...)}
}

// List returns the expert directory.
func (s *MemoryStore) List() []Expert {
	return append([]Expert(nil), s.items...)
}

// FindByID looks up an expert by identifier.
func (s *MemoryStore) FindByID(id string) (Expert, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Expert{}, false
}
