package world

import (
	"fmt"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

// ReplayTick re-applies one tick log entry to a world built from the same
// config and catalogs, stepping any idle ticks before it. It returns the
// digest after the tick; callers compare it with entry.Digest.
func (w *World) ReplayTick(entry TickLogEntry) (string, error) {
	if now := w.tick.Load(); entry.Tick < now {
		return "", fmt.Errorf("tick %d already stepped (world at %d)", entry.Tick, now)
	}
	for w.tick.Load() < entry.Tick {
		w.stepInternal(nil, nil, nil)
	}

	for _, id := range entry.Attaches {
		e := w.entities[id]
		if e == nil {
			return "", fmt.Errorf("tick %d: attach of unknown entity %s", entry.Tick, id)
		}
		w.reattach(e, w.newClient(replaySession(id), "", "", make(chan []byte, 1)))
	}

	joins := make([]JoinRequest, 0, len(entry.Joins))
	for _, j := range entry.Joins {
		joins = append(joins, JoinRequest{
			Name:        j.Name,
			SessionID:   replaySession(j.EntityID),
			ProfileID:   j.ProfileID,
			Preferences: j.Preferences,
			Out:         make(chan []byte, 1),
		})
	}
	leaves := make([]LeaveRequest, 0, len(entry.Leaves))
	for _, id := range entry.Leaves {
		leaves = append(leaves, LeaveRequest{EntityID: id})
	}
	acts := make([]ActionEnvelope, 0, len(entry.Actions))
	for _, ra := range entry.Actions {
		acts = append(acts, ActionEnvelope{EntityID: ra.EntityID, Act: ra.Act})
	}

	_, digest := w.StepOnce(joins, leaves, acts)
	for _, j := range entry.Joins {
		if w.entities[j.EntityID] == nil {
			return digest, fmt.Errorf("tick %d: join %q did not recreate %s", entry.Tick, j.Name, j.EntityID)
		}
	}
	return digest, nil
}

func replaySession(id consent.EntityID) string { return "replay-" + string(id) }
