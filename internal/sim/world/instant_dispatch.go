package world

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/verbs"
)

func (w *World) applyAct(e *Entity, act protocol.ActMsg, nowTick uint64) {
	for _, inst := range act.Instants {
		switch inst.Type {
		case protocol.InstantSetConsent:
			w.handleSetConsent(e, inst, nowTick)
		case protocol.InstantViewConsentReq:
			w.handleViewRequest(consent.ViewRequest{Requester: e.ID, Target: consent.EntityID(inst.TargetID)}, nowTick)
		case protocol.InstantVerbs:
			w.handleListVerbs(e, inst, nowTick)
		case protocol.InstantUseVerb:
			w.handleUseVerb(e, inst, nowTick)
		case protocol.InstantCloseView:
			w.unbindView(consent.EntityID(inst.TargetID), e.ID)
		case protocol.InstantMove:
			w.handleMove(e, inst, nowTick)
		default:
			w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("unknown instant type %q", inst.Type))
		}
	}
}

func (w *World) handleSetConsent(e *Entity, inst protocol.InstantReq, nowTick uint64) {
	if inst.Topic == "" || inst.Level == nil {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrBadRequest, "missing topic or level")
		return
	}
	topic := consent.TopicID(inst.Topic)
	if !w.catalogs.Consents.Has(topic) {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrUnknownTopic, fmt.Sprintf("unknown topic %q", inst.Topic))
		return
	}
	target := e.ID
	if inst.TargetID != "" {
		target = consent.EntityID(inst.TargetID)
	}
	if *inst.Level < int(consent.Ask) || *inst.Level > int(consent.EnthusiasticAllow) {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("level %d out of range", *inst.Level))
		return
	}
	level := consent.Level(*inst.Level)
	from := w.consent.GetLevel(target, topic)

	if err := w.consent.SetPreference(e.ID, target, topic, level); err != nil {
		code := protocol.ErrInternal
		switch {
		case errors.Is(err, consent.ErrNotOwner):
			code = protocol.ErrNoPermission
		case errors.Is(err, consent.ErrInvalidLevel):
			code = protocol.ErrBadRequest
		case errors.Is(err, consent.ErrNoStore):
			code = protocol.ErrInvalidTarget
		}
		w.sendAck(e.ID, inst.ID, nowTick, code, err.Error())
		return
	}
	w.sendAck(e.ID, inst.ID, nowTick, "", "")

	if w.profiles != nil && e.ProfileID > 0 {
		w.profiles.SavePreference(e.ProfileID, topic, level)
	}
	w.audit(AuditEntry{
		Tick:      nowTick,
		Action:    AuditSetConsent,
		Actor:     string(e.ID),
		Target:    string(target),
		Topic:     string(topic),
		From:      int(from),
		To:        int(level),
		ProfileID: e.ProfileID,
	})
	w.log.WithFields(logrus.Fields{"entity": e.ID, "topic": topic, "from": from, "to": level}).Debug("preference set")

	if from != level {
		w.repushViews(target, nowTick)
	}
}

func (w *World) verbContext(user, target *Entity) verbs.Context {
	dist := Chebyshev(user.Pos, target.Pos)
	return verbs.Context{
		User:           user.ID,
		Target:         target.ID,
		CanAccess:      dist <= w.cfg.AccessRange,
		CanInteract:    w.IsControllableActor(user.ID),
		Distance:       dist,
		TargetHasStore: w.registry.Store(target.ID) != nil,
	}
}

func (w *World) handleListVerbs(e *Entity, inst protocol.InstantReq, nowTick uint64) {
	target := w.entities[consent.EntityID(inst.TargetID)]
	if target == nil {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrInvalidTarget, "unknown target")
		return
	}
	c := w.clients[e.ID]
	if c == nil {
		return
	}
	list := w.verbs.List(w.verbContext(e, target), func(key string) string { return c.Printer.Text(key) })
	msg := protocol.VerbListMsg{
		Type:            protocol.TypeVerbList,
		ProtocolVersion: protocol.Version,
		AckFor:          inst.ID,
		TargetID:        string(target.ID),
		Verbs:           make([]protocol.VerbObs, 0, len(list)),
	}
	for _, v := range list {
		msg.Verbs = append(msg.Verbs, protocol.VerbObs{
			ID:       v.ID,
			Text:     v.Text,
			Category: v.Category,
			Disabled: v.Disabled,
			Message:  v.Message,
		})
	}
	w.send(e.ID, msg)
}

func (w *World) handleUseVerb(e *Entity, inst protocol.InstantReq, nowTick uint64) {
	target := w.entities[consent.EntityID(inst.TargetID)]
	if target == nil {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrInvalidTarget, "unknown target")
		return
	}
	req, err := w.verbs.Activate(inst.Verb, w.verbContext(e, target))
	if err != nil {
		code := protocol.ErrBlocked
		if errors.Is(err, verbs.ErrUnknownVerb) {
			code = protocol.ErrBadRequest
		}
		w.sendAck(e.ID, inst.ID, nowTick, code, err.Error())
		return
	}
	w.sendAck(e.ID, inst.ID, nowTick, "", "")
	w.handleViewRequest(req, nowTick)
}

func (w *World) handleMove(e *Entity, inst protocol.InstantReq, nowTick uint64) {
	next := Vec2i{X: e.Pos.X + clampStep(inst.DX), Y: e.Pos.Y + clampStep(inst.DY)}
	clamped, ok := w.clampToBoundary(next)
	if !ok {
		w.sendAck(e.ID, inst.ID, nowTick, protocol.ErrBlocked, "world boundary")
		return
	}
	e.Pos = clamped
	w.sendAck(e.ID, inst.ID, nowTick, "", "")
}

func (w *World) sendAck(id consent.EntityID, ackFor string, nowTick uint64, code, message string) {
	w.send(id, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
		ServerTick:      nowTick,
	})
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.log.WithError(err).Warn("audit write failed")
	}
}
