package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/logging"
	"github.com/Scylla-Station/Scylla-Station/internal/persistence/profiledb"
)

// errUsage marks bad invocations; main exits 2 for them.
var errUsage = errors.New("usage")

type command struct {
	name string
	help string
	run  func(args []string, out io.Writer) error
}

var commands = []command{
	{"list", "list profiles", listCmd},
	{"create", "create a profile", createCmd},
	{"get", "print a profile's preferences", getCmd},
	{"set", "set one preference", setCmd},
	{"unset", "remove one preference (back to Ask)", unsetCmd},
	{"delete", "delete a profile and its preferences", deleteCmd},
	{"export", "write all profiles as YAML", exportCmd},
	{"import", "replace profiles from a YAML export", importCmd},
	{"audit", "print consent audit entries", auditCmd},
	{"entities", "list live entities on a running server", entitiesCmd},
	{"consent", "print a live entity's consent report", consentCmd},
	{"reload", "ask a running server to reload consent prototypes", reloadCmd},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		err := c.run(os.Args[2:], os.Stdout)
		switch {
		case err == nil:
		case errors.Is(err, pflag.ErrHelp):
		case errors.Is(err, errUsage):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}
	usage(os.Stderr)
	os.Exit(2)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: admin <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.help)
	}
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	dbPath := fs.String("db", "./data/profiles.sqlite", "profile database path")
	return fs, dbPath
}

func openDB(path string) (*profiledb.DB, error) {
	return profiledb.OpenSQLite(path, logging.New("warn", "text"))
}

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func listCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	profiles, err := db.ListProfiles(context.Background())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFERENCES\tCREATED")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", p.ID, p.Name, p.Preferences, p.CreatedAt)
	}
	return tw.Flush()
}

func createCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("create")
	name := fs.String("name", "", "profile name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return usagef("missing --name")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	id, err := db.CreateProfile(context.Background(), strings.TrimSpace(*name))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	return nil
}

func getCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("get")
	profile := fs.Int64("profile", 0, "profile id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profile <= 0 {
		return usagef("missing --profile")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	prefs, err := db.LoadPreferences(context.Background(), *profile)
	if err != nil {
		return err
	}
	for _, t := range prefs.Topics() {
		fmt.Fprintf(out, "%s\t%s\n", t, prefs[t])
	}
	return nil
}

func setCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("set")
	profile := fs.Int64("profile", 0, "profile id")
	topic := fs.String("topic", "", "consent topic id")
	level := fs.String("level", "", "level name or number (-4..3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profile <= 0 || strings.TrimSpace(*topic) == "" {
		return usagef("need --profile and --topic")
	}
	lvl, err := consent.ParseLevel(*level)
	if err != nil {
		return usagef("%v", err)
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.SetPreference(context.Background(), *profile, consent.TopicID(strings.TrimSpace(*topic)), lvl); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d %s=%s\n", *profile, strings.TrimSpace(*topic), lvl)
	return nil
}

func unsetCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("unset")
	profile := fs.Int64("profile", 0, "profile id")
	topic := fs.String("topic", "", "consent topic id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profile <= 0 || strings.TrimSpace(*topic) == "" {
		return usagef("need --profile and --topic")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeletePreference(context.Background(), *profile, consent.TopicID(strings.TrimSpace(*topic)))
}

func deleteCmd(args []string, out io.Writer) error {
	fs, dbPath := newFlagSet("delete")
	profile := fs.Int64("profile", 0, "profile id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profile <= 0 {
		return usagef("missing --profile")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeleteProfile(context.Background(), *profile)
}
