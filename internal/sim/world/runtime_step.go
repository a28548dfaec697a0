package world

import (
	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

func (w *World) stepInternal(joins []JoinRequest, leaves []LeaveRequest, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	recordedAttaches := w.attachedSinceStep
	w.attachedSinceStep = nil

	if slow := w.disconnectOverflowed(); len(slow) > 0 {
		leaves = append(append([]LeaveRequest(nil), leaves...), slow...)
	}
	w.flushOutbound()

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]consent.EntityID, 0, len(leaves))
	for _, req := range leaves {
		if w.handleLeave(req, nowTick) {
			recordedLeaves = append(recordedLeaves, req.EntityID)
		}
	}
	w.expireDetached(nowTick)

	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinEntity(req, nowTick)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{
			EntityID:    consent.EntityID(resp.Welcome.EntityID),
			Name:        req.Name,
			ProfileID:   req.ProfileID,
			Preferences: req.Preferences,
		})
	}

	// Apply actions in server receive order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		e := w.entities[env.EntityID]
		if e == nil || !e.Actor || e.Detached {
			continue
		}
		recorded = append(recorded, RecordedAction{EntityID: env.EntityID, Act: env.Act})
		w.applyAct(e, env.Act, nowTick)
	}

	if w.tickLogger != nil && (len(recordedJoins) > 0 || len(recordedAttaches) > 0 || len(recordedLeaves) > 0 || len(recorded) > 0) {
		entry := TickLogEntry{
			Tick:     nowTick,
			Joins:    recordedJoins,
			Attaches: recordedAttaches,
			Leaves:   recordedLeaves,
			Actions:  recorded,
			Entities: len(w.entities),
			Digest:   w.stateDigest(nowTick),
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.WithError(err).WithField("tick", nowTick).Warn("tick log write failed")
		}
	}

	w.tick.Add(1)
}

// handleLeave detaches the session named by req. The entity itself stays
// until its resume grace window runs out.
func (w *World) handleLeave(req LeaveRequest, nowTick uint64) bool {
	e := w.entities[req.EntityID]
	c := w.clients[req.EntityID]
	if e == nil || c == nil {
		return false
	}
	if req.SessionID != "" && c.SessionID != req.SessionID {
		return false
	}
	delete(w.clients, req.EntityID)
	e.Detached = true
	e.DetachedAt = nowTick
	w.unbindViewer(req.EntityID)
	w.log.WithFields(logrus.Fields{"entity": e.ID, "session": c.SessionID}).Info("session detached")
	return true
}

func (w *World) expireDetached(nowTick uint64) {
	grace := uint64(w.cfg.ResumeGraceTicks)
	for _, id := range w.sortedEntityIDs() {
		e := w.entities[id]
		if !e.Detached || nowTick-e.DetachedAt < grace {
			continue
		}
		w.removeEntity(id, nowTick)
		w.log.WithField("entity", id).Info("entity removed after resume grace")
	}
}

// removeEntity destroys an entity together with its preference store and
// every bound view it takes part in.
func (w *World) removeEntity(id consent.EntityID, nowTick uint64) {
	w.closeViewsOf(id, nowTick)
	w.unbindViewer(id)
	w.registry.Detach(id)
	delete(w.clients, id)
	delete(w.entities, id)
}
