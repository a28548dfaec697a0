package world

import (
	"testing"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
)

func TestReplayTick_ReproducesDigests(t *testing.T) {
	live := newTestWorld(t, tuning.DeliveryUIState)
	live.cfg.ResumeGraceTicks = 3
	rec := &recordingSink{}
	live.SetTickLogger(rec)

	a := joinClient(t, live, "alice", consent.PreferenceMap{"ConsentHugs": consent.Deny})
	b := joinClient(t, live, "bob", nil)
	act(live, a,
		protocol.InstantReq{ID: "S1", Type: protocol.InstantSetConsent, Topic: "ConsentHugs", Level: levelPtr(consent.Allow)},
		protocol.InstantReq{ID: "M1", Type: protocol.InstantMove, DX: 1, DY: -1},
	)
	act(live, b, protocol.InstantReq{ID: "V1", Type: protocol.InstantViewConsentReq, TargetID: string(a.id)})

	live.StepOnce(nil, []LeaveRequest{{EntityID: a.id, SessionID: a.session}}, nil)
	live.StepOnce(nil, nil, nil)
	resp := make(chan JoinResponse, 1)
	live.handleAttach(AttachRequest{ResumeToken: a.resp.Welcome.ResumeToken, SessionID: "sess-2", Out: make(chan []byte, 8), Resp: resp})
	if r := <-resp; r.Err != "" {
		t.Fatalf("attach: %s", r.Err)
	}
	act(live, a, protocol.InstantReq{ID: "S2", Type: protocol.InstantSetConsent, Topic: "ConsentPats", Level: levelPtr(consent.HardDeny)})

	live.StepOnce(nil, []LeaveRequest{{EntityID: b.id, SessionID: b.session}}, nil)
	for i := 0; i < 5; i++ {
		live.StepOnce(nil, nil, nil)
	}
	if live.Exists(b.id) {
		t.Fatalf("bob should have expired")
	}
	c := joinClient(t, live, "carol", nil)

	replay := newTestWorld(t, tuning.DeliveryUIState)
	replay.cfg.ResumeGraceTicks = 3
	for _, entry := range rec.ticks {
		got, err := replay.ReplayTick(entry)
		if err != nil {
			t.Fatalf("replay tick %d: %v", entry.Tick, err)
		}
		if got != entry.Digest {
			t.Fatalf("tick %d digest: got %s want %s", entry.Tick, got, entry.Digest)
		}
	}
	if replay.Exists(b.id) || !replay.Exists(c.id) {
		t.Fatalf("replayed entity set differs: bob=%v carol=%v", replay.Exists(b.id), replay.Exists(c.id))
	}
	if got := replay.registry.Store(a.id).Snapshot(); !got.Equal(live.registry.Store(a.id).Snapshot()) {
		t.Fatalf("alice prefs: got %v want %v", got, live.registry.Store(a.id).Snapshot())
	}
}

func TestReplayTick_RejectsPastTick(t *testing.T) {
	w := newTestWorld(t, tuning.DeliveryEvent)
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)
	if _, err := w.ReplayTick(TickLogEntry{Tick: 0}); err == nil {
		t.Fatalf("expected error for a tick already stepped")
	}
}
