package verbs

import (
	"errors"
	"testing"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
)

func testSet() *Set {
	return NewSet([]tuning.Verb{
		{ID: "interact", TextKey: "view-consent-verb-text", Category: "interaction", RequireInteract: true},
		{ID: "examine", TextKey: "view-consent-verb-text", Category: "examine", RequireInteract: true, MaxRange: -1},
	}, 3)
}

func baseCtx() Context {
	return Context{User: "P", Target: "T", CanAccess: true, CanInteract: true, Distance: 1, TargetHasStore: true}
}

func TestList_GatesAndRange(t *testing.T) {
	s := testSet()
	tr := func(k string) string { return "<" + k + ">" }

	vs := s.List(baseCtx(), tr)
	if len(vs) != 2 || vs[0].ID != "interact" || vs[1].ID != "examine" {
		t.Fatalf("verbs=%+v", vs)
	}
	if vs[0].Text != "<view-consent-verb-text>" || vs[1].Disabled {
		t.Fatalf("verbs=%+v", vs)
	}

	far := baseCtx()
	far.Distance = 10
	vs = s.List(far, tr)
	if len(vs) != 2 || vs[0].Disabled || !vs[1].Disabled || vs[1].Message != "<"+DisabledOutOfRangeKey+">" {
		t.Fatalf("far verbs=%+v", vs)
	}

	blocked := baseCtx()
	blocked.CanInteract = false
	if vs := s.List(blocked, tr); len(vs) != 0 {
		t.Fatalf("verbs offered without interaction: %+v", vs)
	}

	noStore := baseCtx()
	noStore.TargetHasStore = false
	if vs := s.List(noStore, nil); len(vs) != 0 {
		t.Fatalf("verbs offered for storeless target: %+v", vs)
	}
}

func TestActivate_EmitsSameViewRequest(t *testing.T) {
	s := testSet()
	want := consent.ViewRequest{Requester: "P", Target: "T"}
	for _, id := range []string{"interact", "examine"} {
		got, err := s.Activate(id, baseCtx())
		if err != nil || got != want {
			t.Fatalf("%s: got %+v,%v", id, got, err)
		}
	}

	far := baseCtx()
	far.Distance = 10
	if _, err := s.Activate("examine", far); !errors.Is(err, ErrVerbDisabled) {
		t.Fatalf("err=%v want ErrVerbDisabled", err)
	}
	if _, err := s.Activate("interact", far); err != nil {
		t.Fatalf("interact has no range gate: %v", err)
	}
	if _, err := s.Activate("nope", baseCtx()); !errors.Is(err, ErrUnknownVerb) {
		t.Fatalf("err=%v want ErrUnknownVerb", err)
	}
}
