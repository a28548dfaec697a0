package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/Scylla-Station/Scylla-Station/internal/logging"
	persistlog "github.com/Scylla-Station/Scylla-Station/internal/persistence/log"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/catalogs"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
)

// errStop ends a replay early once --to-tick is passed.
var errStop = errors.New("stop")

type options struct {
	dataDir    string
	runID      string
	configDir  string
	tuningPath string
	seed       int64
	fromTick   uint64
	toTick     uint64
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("replay", pflag.ExitOnError)
	fs.StringVar(&opts.dataDir, "data", "./data", "runtime data directory")
	fs.StringVar(&opts.runID, "run", "", "server run to replay (default: latest under <data>/runs)")
	fs.StringVar(&opts.configDir, "configs", "./configs", "config directory")
	fs.StringVar(&opts.tuningPath, "tuning", "./configs/tuning.yaml", "tuning file the server ran with")
	fs.Int64Var(&opts.seed, "seed", 0, "world seed the server ran with")
	fs.Uint64Var(&opts.fromTick, "from-tick", 0, "start verifying digests from this tick (inclusive)")
	fs.Uint64Var(&opts.toTick, "to-tick", 0, "stop after this tick (inclusive, 0 = end of log)")
	_ = fs.Parse(os.Args[1:])

	checked, err := replay(opts, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks\n", checked)
}

func replay(opts options, out io.Writer) (uint64, error) {
	cats, err := catalogs.Load(opts.configDir)
	if err != nil {
		return 0, fmt.Errorf("load catalogs: %w", err)
	}
	tune, err := tuning.Load(opts.tuningPath)
	if err != nil {
		return 0, fmt.Errorf("load tuning: %w", err)
	}
	w, err := world.New(world.ConfigFromTuning("replay", tune, opts.seed), cats, nil)
	if err != nil {
		return 0, err
	}
	w.SetLogger(logging.Discard())

	runID := opts.runID
	if runID == "" {
		if runID, err = persistlog.LatestRun(opts.dataDir); err != nil {
			return 0, err
		}
	}
	ticksDir := filepath.Join(persistlog.RunDir(opts.dataDir, runID), "ticks")
	files, err := persistlog.Files(ticksDir, "ticks")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no tick logs under %s", ticksDir)
	}
	fmt.Fprintf(out, "run=%s catalog=%s tuning=%s files=%d\n", runID, cats.Consents.Digest, tune.Digest, len(files))

	var checked uint64
	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			if opts.toTick != 0 && entry.Tick > opts.toTick {
				return errStop
			}
			got, err := w.ReplayTick(entry)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			if entry.Tick < opts.fromTick {
				return nil
			}
			checked++
			if got != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, got, entry.Digest)
			}
			return nil
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
