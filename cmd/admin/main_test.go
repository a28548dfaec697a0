package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	persistlog "github.com/Scylla-Station/Scylla-Station/internal/persistence/log"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
)

func run(t *testing.T, cmd func([]string, io.Writer) error, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := cmd(args, &out); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestProfileCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.sqlite")

	id := strings.TrimSpace(run(t, createCmd, "--db", db, "--name", "alice"))
	if id != "1" {
		t.Fatalf("create: got id %q", id)
	}
	run(t, setCmd, "--db", db, "--profile", id, "--topic", "ConsentHugs", "--level", "enthusiastic-allow")
	run(t, setCmd, "--db", db, "--profile", id, "--topic", "ConsentCarry", "--level", "-3")

	got := run(t, getCmd, "--db", db, "--profile", id)
	want := "ConsentCarry\tHardDeny\nConsentHugs\tEnthusiasticAllow\n"
	if got != want {
		t.Fatalf("get:\n%s\nwant:\n%s", got, want)
	}

	run(t, unsetCmd, "--db", db, "--profile", id, "--topic", "ConsentCarry")
	if got := run(t, getCmd, "--db", db, "--profile", id); got != "ConsentHugs\tEnthusiasticAllow\n" {
		t.Fatalf("after unset: %q", got)
	}

	list := run(t, listCmd, "--db", db)
	if !strings.Contains(list, "alice") {
		t.Fatalf("list: %s", list)
	}

	run(t, deleteCmd, "--db", db, "--profile", id)
	if got := run(t, getCmd, "--db", db, "--profile", id); got != "" {
		t.Fatalf("after delete: %q", got)
	}
}

func TestProfileCommands_UsageErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "profiles.sqlite")
	cases := [][]string{
		{"--db", db},
		{"--db", db, "--profile", "1"},
		{"--db", db, "--profile", "1", "--topic", "ConsentHugs", "--level", "Maybe"},
	}
	for _, args := range cases {
		if err := setCmd(args, io.Discard); !errors.Is(err, errUsage) {
			t.Fatalf("set %v: got %v want usage error", args, err)
		}
	}
	if err := createCmd([]string{"--db", db}, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("create without name: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sqlite")
	dst := filepath.Join(dir, "dst.sqlite")
	dump := filepath.Join(dir, "profiles.yaml")

	run(t, createCmd, "--db", src, "--name", "bob")
	run(t, setCmd, "--db", src, "--profile", "1", "--topic", "ConsentHugs", "--level", "Allow")
	run(t, setCmd, "--db", src, "--profile", "1", "--topic", "ConsentPats", "--level", "Ask")
	run(t, exportCmd, "--db", src, "--out", dump)

	raw, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if !strings.Contains(string(raw), "ConsentHugs: Allow") {
		t.Fatalf("dump:\n%s", raw)
	}

	if out := run(t, importCmd, "--db", dst, "--in", dump); !strings.Contains(out, "imported 1") {
		t.Fatalf("import: %q", out)
	}
	if got, want := run(t, getCmd, "--db", dst, "--profile", "1"), run(t, getCmd, "--db", src, "--profile", "1"); got != want {
		t.Fatalf("imported prefs:\n%s\nwant:\n%s", got, want)
	}
	if !strings.Contains(run(t, listCmd, "--db", dst), "bob") {
		t.Fatalf("imported name missing")
	}
}

func TestImportRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(in, []byte("profiles:\n  - id: 1\n    name: x\n    preferences:\n      ConsentHugs: Sometimes\n"), 0o644)
	if err := importCmd([]string{"--db", filepath.Join(dir, "p.sqlite"), "--in", in}, io.Discard); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestAuditCmd_Filters(t *testing.T) {
	dataDir := t.TempDir()
	l := persistlog.NewAuditLogger(dataDir)
	entries := []world.AuditEntry{
		{Tick: 1, Action: world.AuditSetConsent, Actor: "E000003", Target: "E000003", Topic: "ConsentHugs", From: 0, To: 2},
		{Tick: 5, Action: world.AuditViewConsent, Actor: "E000004", Target: "E000003"},
		{Tick: 9, Action: world.AuditSetConsent, Actor: "E000004", Target: "E000004", Topic: "ConsentPats", From: 0, To: -1},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	all := run(t, auditCmd, "--data", dataDir)
	if n := strings.Count(all, "\n"); n != 3 {
		t.Fatalf("all: %d lines\n%s", n, all)
	}
	byEntity := run(t, auditCmd, "--data", dataDir, "--entity", "E000003")
	if n := strings.Count(byEntity, "\n"); n != 2 {
		t.Fatalf("entity filter: %d lines\n%s", n, byEntity)
	}
	window := run(t, auditCmd, "--data", dataDir, "--since-tick", "2", "--to-tick", "8")
	if n := strings.Count(window, "\n"); n != 1 || !strings.Contains(window, `"tick":5`) {
		t.Fatalf("tick window:\n%s", window)
	}
	none := run(t, auditCmd, "--data", dataDir, "--topic", "ConsentCarry")
	if !strings.Contains(none, "no matching") {
		t.Fatalf("topic filter: %s", none)
	}
}

func TestAdminRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/admin/v1/consent" && r.URL.Query().Get("entity") == "E000001":
			_, _ = rw.Write([]byte(`{"found":true}`))
		case r.URL.Path == "/admin/v1/reload" && r.Method == http.MethodPost:
			_, _ = rw.Write([]byte(`{"ok":true}`))
		default:
			http.Error(rw, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	if got := run(t, consentCmd, "--url", srv.URL, "--entity", "E000001"); got != `{"found":true}` {
		t.Fatalf("consent: %q", got)
	}
	if got := run(t, reloadCmd, "--url", srv.URL+"/"); got != `{"ok":true}` {
		t.Fatalf("reload: %q", got)
	}
	if err := entitiesCmd([]string{"--url", srv.URL}, io.Discard); err == nil {
		t.Fatalf("expected error on 404")
	}
}
