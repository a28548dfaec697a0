package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

// profileDoc is the YAML form of one profile. Levels are written by name.
type profileDoc struct {
	ID          int64             `yaml:"id"`
	Name        string            `yaml:"name"`
	Preferences map[string]string `yaml:"preferences"`
}

type exportDoc struct {
	Profiles []profileDoc `yaml:"profiles"`
}

func exportCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("export")
	outPath := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	profiles, err := db.ListProfiles(ctx)
	if err != nil {
		return err
	}
	var doc exportDoc
	for _, p := range profiles {
		prefs, err := db.LoadPreferences(ctx, p.ID)
		if err != nil {
			return err
		}
		pd := profileDoc{ID: p.ID, Name: p.Name, Preferences: map[string]string{}}
		for t, l := range prefs {
			pd.Preferences[string(t)] = l.String()
		}
		doc.Profiles = append(doc.Profiles, pd)
	}

	w := out
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func importCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("import")
	inPath := fs.String("in", "", "YAML file written by export")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*inPath) == "" {
		return usagef("missing --in")
	}
	raw, err := os.ReadFile(*inPath)
	if err != nil {
		return err
	}
	var doc exportDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", *inPath, err)
	}
	// Parse everything before touching the database.
	parsed := make([]consent.PreferenceMap, len(doc.Profiles))
	for i, p := range doc.Profiles {
		if p.ID <= 0 {
			return fmt.Errorf("profile #%d: id must be positive", i+1)
		}
		m := consent.PreferenceMap{}
		for t, s := range p.Preferences {
			lvl, err := consent.ParseLevel(s)
			if err != nil {
				return fmt.Errorf("profile %d topic %s: %w", p.ID, t, err)
			}
			m[consent.TopicID(t)] = lvl
		}
		parsed[i] = m
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()
	for i, p := range doc.Profiles {
		if err := db.ImportProfile(ctx, p.ID, p.Name, parsed[i]); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "imported %d profiles\n", len(doc.Profiles))
	return nil
}
