package world

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/i18n"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
)

func (w *World) joinEntity(req JoinRequest, nowTick uint64) JoinResponse {
	id := w.newEntityID()
	e := &Entity{
		ID:          id,
		Name:        normalizeName(req.Name),
		Pos:         w.cfg.Spawn,
		Actor:       true,
		ProfileID:   req.ProfileID,
		ResumeToken: newResumeToken(),
	}
	w.entities[id] = e
	st := w.registry.Attach(id, req.Preferences)

	c := w.newClient(req.SessionID, req.Encoding, req.Locale, req.Out)
	if req.Out != nil {
		w.clients[id] = c
	}

	w.log.WithFields(logrus.Fields{
		"entity":  id,
		"name":    e.Name,
		"profile": e.ProfileID,
		"loaded":  len(req.Preferences),
		"topics":  st.Len(),
		"tick":    nowTick,
	}).Info("entity joined")

	return JoinResponse{
		Welcome:  w.buildWelcome(e, c),
		Catalogs: w.buildCatalogMsgs(c.Printer),
	}
}

func (w *World) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	if token == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{Err: "missing resume token"}
		}
		return
	}

	var e *Entity
	for _, id := range w.sortedEntityIDs() {
		if cand := w.entities[id]; cand.Actor && cand.ResumeToken == token {
			e = cand
			break
		}
	}
	if e == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{Err: "unknown resume token"}
		}
		return
	}

	c := w.newClient(req.SessionID, req.Encoding, req.Locale, req.Out)
	w.reattach(e, c)
	w.log.WithFields(logrus.Fields{"entity": e.ID, "session": c.SessionID}).Info("session resumed")

	if req.Resp != nil {
		req.Resp <- JoinResponse{
			Welcome:  w.buildWelcome(e, c),
			Catalogs: w.buildCatalogMsgs(c.Printer),
		}
	}
}

// reattach binds c to e and rotates e's resume token.
func (w *World) reattach(e *Entity, c *clientState) {
	// A live session being replaced loses its bound views like any leave.
	if _, ok := w.clients[e.ID]; ok {
		w.unbindViewer(e.ID)
	}
	w.clients[e.ID] = c
	e.Detached = false
	e.DetachedAt = 0
	e.ResumeToken = newResumeToken()
	w.attachedSinceStep = append(w.attachedSinceStep, e.ID)
}

func (w *World) newClient(sessionID, encoding, locale string, out chan []byte) *clientState {
	if encoding == "" {
		encoding = protocol.EncodingJSON
	}
	if locale == "" {
		locale = w.cfg.Locale
	}
	return &clientState{
		SessionID: sessionID,
		Out:       out,
		Encoding:  encoding,
		Printer:   w.texts.Printer(locale),
	}
}

func newResumeToken() string {
	return "resume_" + uuid.NewString()
}

func (w *World) buildWelcome(e *Entity, c *clientState) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.SessionID,
		EntityID:        string(e.ID),
		ResumeToken:     e.ResumeToken,
		Encoding:        c.Encoding,
		TickRateHz:      w.cfg.TickRateHz,
		ViewDelivery:    w.cfg.ViewDelivery,
		Catalogs: protocol.CatalogDigests{
			Consent: protocol.DigestRef{
				Digest: w.catalogs.Consents.Digest,
				Count:  len(w.catalogs.Consents.Order),
			},
		},
	}
}

func (w *World) buildCatalogMsgs(p *i18n.Printer) []protocol.CatalogMsg {
	topics := w.catalogs.Consents.EnumerateTopics()
	data := protocol.ConsentCatalogData{
		Topics: make([]protocol.TopicInfo, 0, len(topics)),
	}
	for _, t := range topics {
		data.Topics = append(data.Topics, protocol.TopicInfo{
			ID:          string(t.ID),
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
			Icon:        t.Icon,
		})
	}
	for _, l := range consent.Levels() {
		data.Levels = append(data.Levels, protocol.LevelInfo{
			Level: int(l),
			Name:  l.String(),
			Text:  p.LevelText(l),
			Color: i18n.LevelColor(l),
		})
	}
	return []protocol.CatalogMsg{{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Name:            "consent",
		Digest:          w.catalogs.Consents.Digest,
		Part:            1,
		TotalParts:      1,
		Data:            data,
	}}
}
