package consent

// Initializer fills every catalog topic missing from a store with Neutral.
//
// This deliberately differs from the query default (absent = Ask): a freshly
// attached entity gets an explicit neutral baseline, while lookups of topics
// it never received still fall back to Ask.
type Initializer struct {
	catalog Catalog
}

func NewInitializer(catalog Catalog) *Initializer {
	return &Initializer{catalog: catalog}
}

// SetCatalog swaps the catalog used by later Populate calls.
func (in *Initializer) SetCatalog(catalog Catalog) { in.catalog = catalog }

// Populate inserts Neutral for catalog topics absent from s and reports how
// many entries were added. Existing entries are never changed.
func (in *Initializer) Populate(s *Store) int {
	if in == nil || in.catalog == nil || s == nil {
		return 0
	}
	added := 0
	for _, t := range in.catalog.EnumerateTopics() {
		if t.ID == "" {
			continue
		}
		if s.addIfAbsent(t.ID, Neutral) {
			added++
		}
	}
	return added
}
