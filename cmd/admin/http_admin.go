package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func newBareFlagSet(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

func entitiesCmd(args []string, out io.Writer) error {
	fs := newBareFlagSet("entities")
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return adminRequest(out, http.MethodGet, *baseURL, "/admin/v1/entities")
}

func consentCmd(args []string, out io.Writer) error {
	fs := newBareFlagSet("consent")
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	entity := fs.String("entity", "", "entity id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*entity) == "" {
		return usagef("missing --entity")
	}
	return adminRequest(out, http.MethodGet, *baseURL, "/admin/v1/consent?entity="+url.QueryEscape(strings.TrimSpace(*entity)))
}

func reloadCmd(args []string, out io.Writer) error {
	fs := newBareFlagSet("reload")
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return adminRequest(out, http.MethodPost, *baseURL, "/admin/v1/reload")
}

func adminRequest(out io.Writer, method, baseURL, path string) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprint(out, string(b))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}
