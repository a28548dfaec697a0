package world

import (
	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
)

// maxBacklog caps the messages held for a client whose Out queue is full.
// A client over the cap is disconnected at the start of the next step.
const maxBacklog = 1024

type outbound struct {
	b []byte
	// view is set on ui_state refreshes and names the viewed entity.
	view consent.EntityID
}

// send encodes msg for the client's negotiated encoding and queues it. It
// never blocks the world loop, and a queued message is never discarded
// while the session stays attached.
func (w *World) send(id consent.EntityID, msg any) {
	w.enqueue(id, msg, "")
}

// sendState queues a ui_state refresh of target. A refresh of the same
// target still waiting in the backlog is superseded and removed.
func (w *World) sendState(id, target consent.EntityID, msg any) {
	w.enqueue(id, msg, target)
}

func (w *World) enqueue(id consent.EntityID, msg any, view consent.EntityID) {
	c := w.clients[id]
	if c == nil || c.Out == nil || c.overflowed {
		return
	}
	b, err := protocol.Marshal(c.Encoding, msg)
	if err != nil {
		w.log.WithError(err).WithField("entity", id).Error("encode outbound message")
		return
	}
	if view != "" {
		for i := range c.backlog {
			if c.backlog[i].view == view {
				c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
				break
			}
		}
	}
	c.backlog = append(c.backlog, outbound{b: b, view: view})
	c.deliver()
	if len(c.backlog) > maxBacklog {
		c.overflowed = true
		c.backlog = nil
		w.log.WithFields(logrus.Fields{"entity": id, "session": c.SessionID}).
			Warn("client not reading; disconnecting")
	}
}

// deliver moves as much of the backlog into Out as fits, oldest first.
func (c *clientState) deliver() {
	for len(c.backlog) > 0 {
		select {
		case c.Out <- c.backlog[0].b:
			c.backlog[0] = outbound{}
			c.backlog = c.backlog[1:]
		default:
			return
		}
	}
	c.backlog = nil
}

// flushOutbound retries every client's backlog.
func (w *World) flushOutbound() {
	for _, id := range w.sortedClientIDs() {
		w.clients[id].deliver()
	}
}

// disconnectOverflowed closes the Out queue of every client that went over
// maxBacklog and returns the leaves that detach them.
func (w *World) disconnectOverflowed() []LeaveRequest {
	var out []LeaveRequest
	for _, id := range w.sortedClientIDs() {
		c := w.clients[id]
		if !c.overflowed {
			continue
		}
		close(c.Out)
		c.Out = nil
		out = append(out, LeaveRequest{EntityID: id, SessionID: c.SessionID})
	}
	return out
}
