package world

import (
	"context"
	"sort"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

func (w *World) sortedEntityIDs() []consent.EntityID {
	out := make([]consent.EntityID, 0, len(w.entities))
	for id := range w.entities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *World) sortedClientIDs() []consent.EntityID {
	out := make([]consent.EntityID, 0, len(w.clients))
	for id := range w.clients {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *World) entityInfo(e *Entity) EntityInfo {
	_, connected := w.clients[e.ID]
	return EntityInfo{
		ID:        e.ID,
		Name:      e.Name,
		Pos:       e.Pos,
		Actor:     e.Actor,
		Connected: connected,
		ProfileID: e.ProfileID,
		Prefs:     w.registry.Store(e.ID).Snapshot(),
	}
}

// Entities lists every entity with a copy of its preferences.
func (w *World) Entities(ctx context.Context) ([]EntityInfo, error) {
	var out []EntityInfo
	err := w.Query(ctx, func(w *World) {
		for _, id := range w.sortedEntityIDs() {
			out = append(out, w.entityInfo(w.entities[id]))
		}
	})
	return out, err
}

// ConsentReport answers the consent queries other gameplay systems use for
// one entity: per-topic level and permission plus one role draw.
type ConsentReport struct {
	Entity   consent.EntityID         `json:"entity"`
	Found    bool                     `json:"found"`
	Levels   map[consent.TopicID]int  `json:"levels"`
	Allowed  map[consent.TopicID]bool `json:"allowed"`
	Position string                   `json:"position"`
}

func (w *World) ConsentReport(ctx context.Context, id consent.EntityID) (ConsentReport, error) {
	rep := ConsentReport{
		Entity:  id,
		Levels:  map[consent.TopicID]int{},
		Allowed: map[consent.TopicID]bool{},
	}
	err := w.Query(ctx, func(w *World) {
		_, rep.Found = w.entities[id]
		for _, t := range w.catalogs.Consents.EnumerateTopics() {
			rep.Levels[t.ID] = int(w.consent.GetLevel(id, t.ID))
			rep.Allowed[t.ID] = w.consent.IsAllowed(id, t.ID)
		}
		rep.Position = w.consent.DetermineDomSubPosition(id).String()
	})
	return rep, err
}
