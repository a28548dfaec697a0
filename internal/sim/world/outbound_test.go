package world

import (
	"fmt"
	"testing"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
)

func moves(n int) []protocol.InstantReq {
	out := make([]protocol.InstantReq, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, protocol.InstantReq{ID: fmt.Sprintf("M%d", i+1), Type: protocol.InstantMove})
	}
	return out
}

func TestOutbound_ViewSurvivesFullQueue(t *testing.T) {
	w := newTestWorld(t, tuning.DeliveryEvent)
	a := joinClientQueue(t, w, "alice", nil, 16)
	b := joinClient(t, w, "bob", nil)
	_ = a.drain(t)

	instants := append([]protocol.InstantReq{
		{ID: "V1", Type: protocol.InstantViewConsentReq, TargetID: string(b.id)},
	}, moves(16)...)
	act(w, a, instants...)

	msgs := a.drain(t)
	if len(msgs) != 16 {
		t.Fatalf("queued=%d want a full queue of 16", len(msgs))
	}
	if got := views(t, msgs); len(got) != 1 || got[0].TargetID != string(b.id) {
		t.Fatalf("views=%+v", got)
	}

	// The overflow is held and delivered on the next step.
	w.StepOnce(nil, nil, nil)
	msgs = append(msgs, a.drain(t)...)
	if n := len(acks(t, msgs)); n != 16 {
		t.Fatalf("acks=%d want 16", n)
	}
	wantAck(t, msgs, "M16", "")
	if !w.IsControllableActor(a.id) {
		t.Fatalf("client with a short backlog was disconnected")
	}
}

func TestOutbound_StateRefreshSupersedesQueuedOne(t *testing.T) {
	w := newTestWorld(t, tuning.DeliveryUIState)
	a := joinClientQueue(t, w, "alice", nil, 1)
	b := joinClient(t, w, "bob", nil)
	_ = a.drain(t)

	act(w, a, protocol.InstantReq{ID: "V1", Type: protocol.InstantViewConsentReq, TargetID: string(b.id)})
	act(w, b, protocol.InstantReq{ID: "S1", Type: protocol.InstantSetConsent, Topic: "ConsentHugs", Level: levelPtr(consent.EnthusiasticAllow)})
	act(w, b, protocol.InstantReq{ID: "S2", Type: protocol.InstantSetConsent, Topic: "ConsentHugs", Level: levelPtr(consent.Deny)})

	if got := views(t, a.drain(t)); len(got) != 1 || got[0].Closed {
		t.Fatalf("initial view=%+v", got)
	}
	w.StepOnce(nil, nil, nil)
	got := views(t, a.drain(t))
	if len(got) != 1 || got[0].Preferences["ConsentHugs"] != int(consent.Deny) {
		t.Fatalf("refresh=%+v", got)
	}
	w.StepOnce(nil, nil, nil)
	if got := a.drain(t); len(got) != 0 {
		t.Fatalf("superseded refresh still delivered: %d messages", len(got))
	}
}

func TestOutbound_StalledClientIsDisconnected(t *testing.T) {
	w := newTestWorld(t, tuning.DeliveryEvent)
	a := joinClientQueue(t, w, "alice", nil, 1)
	_ = a.drain(t)

	act(w, a, moves(maxBacklog+2)...)
	if !w.clients[a.id].overflowed {
		t.Fatalf("backlog over %d not flagged", maxBacklog)
	}

	w.StepOnce(nil, nil, nil)
	if w.IsControllableActor(a.id) {
		t.Fatalf("stalled client still attached")
	}
	if _, ok := w.clients[a.id]; ok {
		t.Fatalf("stalled client still registered")
	}
	n := 0
	for range a.out {
		n++
	}
	if n != 1 {
		t.Fatalf("closed queue held %d messages want 1", n)
	}
}
