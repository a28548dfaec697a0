package consent

import (
	"math/rand"
	"testing"
)

type fakeDir struct {
	names  map[EntityID]string
	actors map[EntityID]bool
}

func (d fakeDir) Exists(id EntityID) bool {
	_, ok := d.names[id]
	return ok
}
func (d fakeDir) DisplayName(id EntityID) string       { return d.names[id] }
func (d fakeDir) IsControllableActor(id EntityID) bool { return d.actors[id] }

type fixedRand struct{ calls int }

func (r *fixedRand) Intn(n int) int {
	r.calls++
	return n - 1
}

func testCatalog() StaticCatalog {
	return StaticCatalog{
		{ID: "A", Name: "Topic A", Category: DefaultCategory},
		{ID: "B", Name: "Topic B", Category: DefaultCategory},
		{ID: DominantTopic, Name: "Dominant", Category: "Roles"},
		{ID: SubmissiveTopic, Name: "Submissive", Category: "Roles"},
	}
}

func newTestService(rng Rand) *Service {
	reg := NewRegistry(NewInitializer(testCatalog()))
	return NewService(reg, rng)
}

func TestGetLevel_AbsentIsAsk(t *testing.T) {
	svc := newTestService(nil)
	if got := svc.GetLevel("nobody", "A"); got != Ask {
		t.Fatalf("no store: got %v want Ask", got)
	}
	svc.Registry().Attach("E1", nil)
	if got := svc.GetLevel("E1", "NotInCatalog"); got != Ask {
		t.Fatalf("absent topic: got %v want Ask", got)
	}
	if got := svc.GetLevel("E1", "A"); got != Neutral {
		t.Fatalf("initialized topic: got %v want Neutral", got)
	}
	var nilStore *Store
	if got := nilStore.Get("A"); got != Ask {
		t.Fatalf("nil store: got %v want Ask", got)
	}
}

func TestInitializer_NonDestructiveAndIdempotent(t *testing.T) {
	cat := testCatalog()
	in := NewInitializer(cat)
	s := NewStore(PreferenceMap{"A": Allow, "Stale": Deny})

	if added := in.Populate(s); added != len(cat)-1 {
		t.Fatalf("added=%d want %d", added, len(cat)-1)
	}
	if s.Len() < len(cat) {
		t.Fatalf("len=%d want >= %d", s.Len(), len(cat))
	}
	if got := s.Get("A"); got != Allow {
		t.Fatalf("pre-existing value clobbered: %v", got)
	}
	if got := s.Get("Stale"); got != Deny {
		t.Fatalf("stale topic dropped: %v", got)
	}
	if got := s.Get("B"); got != Neutral {
		t.Fatalf("B=%v want Neutral", got)
	}

	before := s.Snapshot()
	if added := in.Populate(s); added != 0 {
		t.Fatalf("re-run added %d", added)
	}
	if after := s.Snapshot(); !before.Equal(after) {
		t.Fatalf("re-run changed snapshot: %v -> %v", before, after)
	}

	in.SetCatalog(append(cat, Topic{ID: "C", Name: "C"}))
	if added := in.Populate(s); added != 1 {
		t.Fatalf("new catalog topic: added=%d want 1", added)
	}
	if got := s.Get("A"); got != Allow {
		t.Fatalf("refresh clobbered A: %v", got)
	}
}

func TestService_RefreshAddsNewTopicsOnly(t *testing.T) {
	svc := newTestService(nil)
	svc.Registry().Attach("e1", PreferenceMap{"A": Allow})

	next := append(testCatalog(), Topic{ID: "C", Name: "Topic C", Category: DefaultCategory})
	if n := svc.Refresh(next); n != 1 {
		t.Fatalf("added=%d want 1", n)
	}
	if got := svc.GetLevel("e1", "C"); got != Neutral {
		t.Fatalf("C=%s want Neutral", got)
	}
	if got := svc.GetLevel("e1", "A"); got != Allow {
		t.Fatalf("A=%s want Allow", got)
	}
	if n := svc.Refresh(next); n != 0 {
		t.Fatalf("second refresh added %d", n)
	}
}

func TestRegistry_AttachDoesNotAliasInitial(t *testing.T) {
	reg := NewRegistry(nil)
	initial := PreferenceMap{"A": Allow}
	st := reg.Attach("E1", initial)
	initial["A"] = Deny
	if got := st.Get("A"); got != Allow {
		t.Fatalf("store aliases caller map: %v", got)
	}
	if again := reg.Attach("E1", PreferenceMap{"A": Deny}); again != st {
		t.Fatalf("second attach replaced store")
	}
	reg.Detach("E1")
	if reg.Store("E1") != nil {
		t.Fatalf("store survived detach")
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore(PreferenceMap{"A": Allow})
	snap := s.Snapshot()
	snap["A"] = HardDeny
	snap["B"] = Allow
	if s.Get("A") != Allow || s.Has("B") {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestStore_SetRejectsOutOfRange(t *testing.T) {
	s := NewStore(nil)
	if err := s.Set("A", Level(4)); err == nil {
		t.Fatalf("expected error for level 4")
	}
	if err := s.Set("A", Level(-5)); err == nil {
		t.Fatalf("expected error for level -5")
	}
	if s.Has("A") {
		t.Fatalf("invalid level stored")
	}
	if st := NewStore(PreferenceMap{"X": Level(9)}); st.Has("X") {
		t.Fatalf("invalid initial level kept")
	}
}

func TestIsAllowed_Threshold(t *testing.T) {
	svc := newTestService(nil)
	svc.Registry().Attach("E1", nil)
	want := map[Level]bool{
		Ask: false, HardDeny: false, Deny: false, SoftDeny: false, Neutral: false,
		SoftAllow: true, Allow: true, EnthusiasticAllow: true,
	}
	for _, l := range Levels() {
		if err := svc.SetPreference("E1", "E1", "A", l); err != nil {
			t.Fatalf("set %v: %v", l, err)
		}
		if got := svc.IsAllowed("E1", "A"); got != want[l] {
			t.Fatalf("IsAllowed(%v)=%v want %v", l, got, want[l])
		}
	}
	if svc.IsAllowed("ghost", "A") {
		t.Fatalf("missing store must not be allowed")
	}
}

func TestSetPreference_OwnerOnly(t *testing.T) {
	svc := newTestService(nil)
	svc.Registry().Attach("E1", nil)
	svc.Registry().Attach("E2", nil)
	if err := svc.SetPreference("E2", "E1", "A", Allow); err != ErrNotOwner {
		t.Fatalf("err=%v want ErrNotOwner", err)
	}
	if got := svc.GetLevel("E1", "A"); got != Neutral {
		t.Fatalf("foreign edit applied: %v", got)
	}
	if err := svc.SetPreference("E3", "E3", "A", Allow); err != ErrNoStore {
		t.Fatalf("err=%v want ErrNoStore", err)
	}
	if err := svc.SetPreference("E1", "E1", "A", Level(7)); err != ErrInvalidLevel {
		t.Fatalf("err=%v want ErrInvalidLevel", err)
	}
}

func TestRoleWeight(t *testing.T) {
	cases := map[Level]int{
		Ask: 0, HardDeny: 0, Deny: 1, SoftDeny: 2, Neutral: 3,
		SoftAllow: 4, Allow: 5, EnthusiasticAllow: 6,
	}
	for l, want := range cases {
		if got := RoleWeight(l); got != want {
			t.Fatalf("RoleWeight(%v)=%d want %d", l, got, want)
		}
	}
}

func TestDetermineDomSubPosition_Boundaries(t *testing.T) {
	cases := []struct {
		name     string
		dom, sub Level
		want     Position
		draws    int
	}{
		{"both ask", Ask, Ask, PositionIndeterminate, 0},
		{"harddeny vs ask", HardDeny, Ask, PositionIndeterminate, 0},
		{"both harddeny", HardDeny, HardDeny, PositionIndeterminate, 0},
		{"harddeny vs deny", HardDeny, Deny, PositionSubmissive, 1},
		{"deny vs ask", Deny, Ask, PositionDominant, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := &fixedRand{}
			svc := newTestService(rng)
			svc.Registry().Attach("E1", PreferenceMap{DominantTopic: tc.dom, SubmissiveTopic: tc.sub})
			for i := 0; i < 20; i++ {
				if got := svc.DetermineDomSubPosition("E1"); got != tc.want {
					t.Fatalf("got %v want %v", got, tc.want)
				}
			}
			if tc.draws == 0 && rng.calls != 0 {
				t.Fatalf("indeterminate result must not draw, calls=%d", rng.calls)
			}
		})
	}
}

func TestDetermineDomSubPosition_AlwaysSubmissiveUnderAnyDraw(t *testing.T) {
	svc := newTestService(rand.New(rand.NewSource(7)))
	svc.Registry().Attach("E1", PreferenceMap{DominantTopic: HardDeny, SubmissiveTopic: Deny})
	for i := 0; i < 1000; i++ {
		if got := svc.DetermineDomSubPosition("E1"); got != PositionSubmissive {
			t.Fatalf("draw %d: got %v", i, got)
		}
	}
}

func TestDetermineDomSubPosition_NoStoreOrTopics(t *testing.T) {
	svc := NewService(NewRegistry(NewInitializer(StaticCatalog{{ID: "A", Name: "A"}})), &fixedRand{})
	if got := svc.DetermineDomSubPosition("ghost"); got != PositionIndeterminate {
		t.Fatalf("no store: got %v", got)
	}
	// Catalog lacks both role topics: both sides read Ask, weight 0.
	svc.Registry().Attach("E1", nil)
	if got := svc.DetermineDomSubPosition("E1"); got != PositionIndeterminate {
		t.Fatalf("missing role topics: got %v", got)
	}
}

func TestDetermineDomSubPosition_SymmetricIsFair(t *testing.T) {
	const trials = 10000
	for _, l := range []Level{Deny, Neutral, EnthusiasticAllow} {
		svc := newTestService(rand.New(rand.NewSource(42)))
		svc.Registry().Attach("E1", PreferenceMap{DominantTopic: l, SubmissiveTopic: l})
		dom := 0
		for i := 0; i < trials; i++ {
			switch svc.DetermineDomSubPosition("E1") {
			case PositionDominant:
				dom++
			case PositionIndeterminate:
				t.Fatalf("level %v: unexpected indeterminate", l)
			}
		}
		sub := trials - dom
		exp := float64(trials) / 2
		chi := (float64(dom)-exp)*(float64(dom)-exp)/exp + (float64(sub)-exp)*(float64(sub)-exp)/exp
		// 1 degree of freedom, p = 0.001.
		if chi > 10.83 {
			t.Fatalf("level %v: dom=%d sub=%d chi2=%.2f", l, dom, sub, chi)
		}
	}
}

func TestHandleViewRequest(t *testing.T) {
	svc := NewService(NewRegistry(nil), nil)
	svc.Registry().Attach("T", PreferenceMap{"A": Allow, "B": Deny})
	dir := fakeDir{
		names:  map[EntityID]string{"P": "Player", "T": "Target", "N": "Npc", "X": ""},
		actors: map[EntityID]bool{"P": true},
	}

	resp, ok := HandleViewRequest(ViewRequest{Requester: "P", Target: "T"}, dir, svc)
	if !ok {
		t.Fatalf("valid request rejected")
	}
	if resp.TargetName != "Target" {
		t.Fatalf("name=%q", resp.TargetName)
	}
	if want := (PreferenceMap{"A": Allow, "B": Deny}); !resp.Preferences.Equal(want) {
		t.Fatalf("snapshot=%v want %v", resp.Preferences, want)
	}
	resp.Preferences["A"] = HardDeny
	if svc.GetLevel("T", "A") != Allow {
		t.Fatalf("response aliases live store")
	}

	if _, ok := HandleViewRequest(ViewRequest{Requester: "N", Target: "T"}, dir, svc); ok {
		t.Fatalf("non-actor requester accepted")
	}
	if _, ok := HandleViewRequest(ViewRequest{Requester: "P", Target: "missing"}, dir, svc); ok {
		t.Fatalf("unknown target accepted")
	}
	if _, ok := HandleViewRequest(ViewRequest{Requester: "ghost", Target: "T"}, dir, svc); ok {
		t.Fatalf("unknown requester accepted")
	}

	resp, ok = HandleViewRequest(ViewRequest{Requester: "P", Target: "X"}, dir, svc)
	if !ok || resp.TargetName != UnknownName || len(resp.Preferences) != 0 {
		t.Fatalf("unnamed storeless target: ok=%v resp=%+v", ok, resp)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"Ask": Ask, "hard_deny": HardDeny, "soft-allow": SoftAllow,
		"EnthusiasticAllow": EnthusiasticAllow, "-4": Ask, "3": EnthusiasticAllow, " 0 ": Neutral,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "4", "-5", "maybe", "300"} {
		if _, err := ParseLevel(bad); err == nil {
			t.Fatalf("ParseLevel(%q) accepted", bad)
		}
	}
	if Level(5).String() != "Level(5)" || Allow.String() != "Allow" {
		t.Fatalf("String mismatch")
	}
}
