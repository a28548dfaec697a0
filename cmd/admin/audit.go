package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	persistlog "github.com/Scylla-Station/Scylla-Station/internal/persistence/log"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
)

type auditFilter struct {
	since, until uint64
	entity       string
	topic        string
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if e.Tick < f.since || (f.until > 0 && e.Tick > f.until) {
		return false
	}
	if f.entity != "" && e.Actor != f.entity && e.Target != f.entity {
		return false
	}
	if f.topic != "" && e.Topic != f.topic {
		return false
	}
	return true
}

func auditCmd(args []string, out io.Writer) error {
	fs := newBareFlagSet("audit")
	dataDir := fs.String("data", "./data", "runtime data directory")
	var f auditFilter
	fs.Uint64Var(&f.since, "since-tick", 0, "first tick (inclusive)")
	fs.Uint64Var(&f.until, "to-tick", 0, "last tick (inclusive, 0 = no limit)")
	fs.StringVar(&f.entity, "entity", "", "only entries where this entity is actor or target")
	fs.StringVar(&f.topic, "topic", "", "only entries for this topic")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files, err := persistlog.Files(filepath.Join(*dataDir, "audit"), "audit")
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	n := 0
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			if !f.match(e) {
				return nil
			}
			n++
			return enc.Encode(e)
		})
		if err != nil {
			return err
		}
	}
	if n == 0 {
		fmt.Fprintln(out, "no matching audit entries")
	}
	return nil
}
