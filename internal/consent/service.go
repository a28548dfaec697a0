package consent

// Rand is the random source used for role resolution.
type Rand interface {
	Intn(n int) int
}

// Position is the outcome of a dominant/submissive resolution.
type Position int

const (
	PositionIndeterminate Position = iota
	PositionDominant
	PositionSubmissive
)

func (p Position) String() string {
	switch p {
	case PositionDominant:
		return "dominant"
	case PositionSubmissive:
		return "submissive"
	default:
		return "indeterminate"
	}
}

// Service answers consent queries over a Registry.
type Service struct {
	stores *Registry
	rng    Rand
}

func NewService(stores *Registry, rng Rand) *Service {
	return &Service{stores: stores, rng: rng}
}

func (s *Service) Registry() *Registry { return s.stores }

// GetLevel never fails: a missing store or topic yields Ask.
func (s *Service) GetLevel(entity EntityID, topic TopicID) Level {
	return s.stores.Store(entity).Get(topic)
}

func (s *Service) IsAllowed(entity EntityID, topic TopicID) bool {
	return s.GetLevel(entity, topic) >= AllowThreshold
}

// Refresh installs a reloaded catalog and back-fills every attached store
// with Neutral for topics it has not seen yet.
func (s *Service) Refresh(catalog Catalog) int {
	s.stores.SetCatalog(catalog)
	return s.stores.Refresh()
}

// RoleWeight maps a level onto its non-negative resolution weight.
func RoleWeight(l Level) int {
	w := int(l) + 3
	if w < 0 {
		return 0
	}
	return w
}

// DetermineDomSubPosition draws a single weighted role for entity. The result
// is not remembered; callers needing a stable role must keep it themselves.
func (s *Service) DetermineDomSubPosition(entity EntityID) Position {
	st := s.stores.Store(entity)
	if st == nil {
		return PositionIndeterminate
	}
	domWeight := RoleWeight(st.Get(DominantTopic))
	subWeight := RoleWeight(st.Get(SubmissiveTopic))
	total := domWeight + subWeight
	if total <= 0 || s.rng == nil {
		return PositionIndeterminate
	}
	if s.rng.Intn(total) < domWeight {
		return PositionDominant
	}
	return PositionSubmissive
}

// SetPreference is the only mutation path for preferences: actor may edit
// its own store and nobody else's.
func (s *Service) SetPreference(actor, target EntityID, topic TopicID, level Level) error {
	if actor != target {
		return ErrNotOwner
	}
	if !level.Valid() {
		return ErrInvalidLevel
	}
	st := s.stores.Store(target)
	if st == nil {
		return ErrNoStore
	}
	return st.Set(topic, level)
}
