package world

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/i18n"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/catalogs"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/verbs"
)

// Entity is anything that can carry consent preferences. Players are
// actors; NPCs are not.
type Entity struct {
	ID          consent.EntityID
	Name        string
	Pos         Vec2i
	Actor       bool
	ProfileID   int64
	ResumeToken string

	// Detached players have no session and are removed once the resume
	// grace window after DetachedAt has passed.
	Detached   bool
	DetachedAt uint64
}

type clientState struct {
	SessionID string
	Out       chan []byte
	Encoding  string
	Printer   *i18n.Printer

	// Messages waiting for room in Out.
	backlog    []outbound
	overflowed bool
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	texts    *i18n.Bundle
	verbs    *verbs.Set
	log      logrus.FieldLogger

	tick atomic.Uint64

	entities map[consent.EntityID]*Entity
	clients  map[consent.EntityID]*clientState

	registry *consent.Registry
	consent  *consent.Service
	rng      *rand.Rand

	// views[target][viewer] marks a bound ui_state view.
	views map[consent.EntityID]map[consent.EntityID]bool

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan LeaveRequest
	query  chan queryReq
	reload chan reloadReq
	stop   chan struct{}

	stopOnce sync.Once

	nextEntityNum atomic.Uint64

	// Entities resumed since the last step; logged with the next tick.
	attachedSinceStep []consent.EntityID

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	profiles    ProfileSink
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, texts *i18n.Bundle) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	switch cfg.ViewDelivery {
	case tuning.DeliveryEvent, tuning.DeliveryUIState:
	default:
		return nil, fmt.Errorf("world: unknown view delivery %q", cfg.ViewDelivery)
	}
	if texts == nil {
		b, err := i18n.LoadEmbedded()
		if err != nil {
			return nil, err
		}
		texts = b
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	l := logrus.New()
	l.SetOutput(io.Discard)

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		texts:    texts,
		verbs:    verbs.NewSet(cfg.Verbs, cfg.DetailsRange),
		log:      l,
		entities: map[consent.EntityID]*Entity{},
		clients:  map[consent.EntityID]*clientState{},
		views:    map[consent.EntityID]map[consent.EntityID]bool{},
		inbox:    make(chan ActionEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		attach:   make(chan AttachRequest, 64),
		leave:    make(chan LeaveRequest, 64),
		query:    make(chan queryReq, 16),
		reload:   make(chan reloadReq, 1),
		stop:     make(chan struct{}),
	}
	w.rng = rand.New(rand.NewSource(seed))
	w.registry = consent.NewRegistry(consent.NewInitializer(&cats.Consents))
	w.consent = consent.NewService(w.registry, w.rng)

	if err := w.spawnNPCs(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) SetLogger(l logrus.FieldLogger) {
	if l != nil {
		w.log = l.WithField("world", w.cfg.ID)
	}
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetProfileSink(p ProfileSink) { w.profiles = p }

func (w *World) Inbox() chan<- ActionEnvelope     { return w.inbox }
func (w *World) Join() chan<- JoinRequest         { return w.join }
func (w *World) Attach() chan<- AttachRequest     { return w.attach }
func (w *World) Leave() chan<- LeaveRequest       { return w.leave }
func (w *World) Done() <-chan struct{}            { return w.stop }
func (w *World) CurrentTick() uint64              { return w.tick.Load() }
func (w *World) Catalogs() *catalogs.Catalogs     { return w.catalogs }
func (w *World) Config() WorldConfig              { return w.cfg }
func (w *World) ConsentService() *consent.Service { return w.consent }

func (w *World) newEntityID() consent.EntityID {
	n := w.nextEntityNum.Add(1)
	return consent.EntityID(fmt.Sprintf("E%06d", n))
}

// Exists, DisplayName and IsControllableActor make the world the
// consent.Directory for view requests.

func (w *World) Exists(id consent.EntityID) bool {
	_, ok := w.entities[id]
	return ok
}

func (w *World) DisplayName(id consent.EntityID) string {
	if e := w.entities[id]; e != nil {
		return e.Name
	}
	return ""
}

// IsControllableActor is true only for players with a live session.
func (w *World) IsControllableActor(id consent.EntityID) bool {
	e := w.entities[id]
	if e == nil || !e.Actor {
		return false
	}
	_, ok := w.clients[id]
	return ok
}

func (w *World) spawnNPCs() error {
	for _, npc := range w.cfg.NPCs {
		prefs := consent.PreferenceMap{}
		for topic, raw := range npc.Preferences {
			lv, err := consent.ParseLevel(raw)
			if err != nil {
				return fmt.Errorf("npc %q: %s: %w", npc.Name, topic, err)
			}
			prefs[consent.TopicID(topic)] = lv
		}
		id := w.newEntityID()
		w.entities[id] = &Entity{
			ID:   id,
			Name: normalizeName(npc.Name),
			Pos:  Vec2i{X: npc.Pos[0], Y: npc.Pos[1]},
		}
		w.registry.Attach(id, prefs)
	}
	return nil
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > 64 {
		name = string(r[:64])
	}
	return name
}

func (w *World) clampToBoundary(p Vec2i) (Vec2i, bool) {
	r := w.cfg.BoundaryR
	out := p
	if out.X > r {
		out.X = r
	}
	if out.X < -r {
		out.X = -r
	}
	if out.Y > r {
		out.Y = r
	}
	if out.Y < -r {
		out.Y = -r
	}
	return out, out == p
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampStep(v int) int {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
