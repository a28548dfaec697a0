package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
)

func newMux(w *world.World, configDir string, logger logrus.FieldLogger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		ents, err := w.Entities(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		connected := 0
		for _, e := range ents {
			if e.Connected {
				connected++
			}
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		id := w.Config().ID
		fmt.Fprintf(rw, "# HELP consent_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE consent_world_tick gauge\n")
		fmt.Fprintf(rw, "consent_world_tick{world=%q} %d\n", id, w.CurrentTick())
		fmt.Fprintf(rw, "# HELP consent_world_entities Entities carrying consent preferences.\n")
		fmt.Fprintf(rw, "# TYPE consent_world_entities gauge\n")
		fmt.Fprintf(rw, "consent_world_entities{world=%q} %d\n", id, len(ents))
		fmt.Fprintf(rw, "# HELP consent_world_clients Connected clients.\n")
		fmt.Fprintf(rw, "# TYPE consent_world_clients gauge\n")
		fmt.Fprintf(rw, "consent_world_clients{world=%q} %d\n", id, connected)
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/entities", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		ents, err := w.Entities(ctx)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, ents)
	}))
	mux.HandleFunc("/admin/v1/consent", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("entity"))
		if id == "" {
			http.Error(rw, "missing entity", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		rep, err := w.ConsentReport(ctx, consent.EntityID(id))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(rw, http.StatusOK, rep)
	}))
	mux.HandleFunc("/admin/v1/reload", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		added, digest, err := reloadCatalogs(r.Context(), w, configDir)
		if err != nil {
			logger.WithError(err).Error("catalog reload failed")
			writeJSON(rw, http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "added": added, "digest": digest})
	}))
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
