package main

import (
	"strings"
	"testing"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/i18n"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
)

func TestParseEdits(t *testing.T) {
	edits, err := parseEdits(map[string]string{"ConsentHugs": "Allow", "ConsentAnimals": "-2"})
	if err != nil {
		t.Fatalf("parseEdits: %v", err)
	}
	if len(edits) != 2 || edits[0].topic != "ConsentAnimals" || edits[0].level != consent.Deny {
		t.Fatalf("edits: %+v", edits)
	}
	if _, err := parseEdits(map[string]string{"ConsentHugs": "Maybe"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestBuildAct(t *testing.T) {
	act := buildAct("E000003", "E000001", []edit{{topic: "ConsentHugs", level: consent.Allow}})
	if len(act.Instants) != 2 {
		t.Fatalf("instants: %+v", act.Instants)
	}
	set := act.Instants[0]
	if set.Type != protocol.InstantSetConsent || set.TargetID != "E000003" || set.Level == nil || *set.Level != int(consent.Allow) {
		t.Fatalf("set instant: %+v", set)
	}
	if act.Instants[1].Type != protocol.InstantViewConsentReq || act.Instants[1].TargetID != "E000001" {
		t.Fatalf("view instant: %+v", act.Instants[1])
	}
}

func TestRenderView(t *testing.T) {
	texts, err := i18n.LoadEmbedded()
	if err != nil {
		t.Fatalf("locales: %v", err)
	}
	v := protocol.ViewConsentMsg{
		TargetName:  "Urist",
		Preferences: map[string]int{"ConsentZeta": 0, "ConsentHugs": int(consent.Allow)},
	}
	lines := renderView(texts.Printer("en-US"), v, []string{"ConsentHugs"})
	if len(lines) != 3 {
		t.Fatalf("lines: %q", lines)
	}
	if lines[0] != "Consent preferences of Urist" {
		t.Fatalf("title: %q", lines[0])
	}
	if !strings.Contains(lines[1], "ConsentHugs") || !strings.Contains(lines[1], "Allow") || !strings.Contains(lines[1], "#008000") {
		t.Fatalf("hugs line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "ConsentZeta") || !strings.Contains(lines[2], "Neutral") {
		t.Fatalf("zeta line: %q", lines[2])
	}

	v.Closed = true
	if got := renderView(texts.Printer("en-US"), v, nil); len(got) != 1 || !strings.HasSuffix(got[0], "(closed)") {
		t.Fatalf("closed: %q", got)
	}
}
