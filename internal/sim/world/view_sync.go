package world

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/catalogs"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/tuning"
)

// handleViewRequest answers req to the requester only. Requests that fail
// validation are dropped without a reply.
func (w *World) handleViewRequest(req consent.ViewRequest, nowTick uint64) {
	resp, ok := consent.HandleViewRequest(req, w, w.consent)
	if !ok {
		w.log.WithFields(logrus.Fields{"requester": req.Requester, "target": req.Target}).Debug("view request dropped")
		return
	}
	uiState := w.cfg.ViewDelivery == tuning.DeliveryUIState
	if uiState {
		w.bindView(req.Target, req.Requester)
	}
	w.send(req.Requester, viewMsg(resp, nowTick, uiState))
	w.audit(AuditEntry{
		Tick:    nowTick,
		Action:  AuditViewConsent,
		Actor:   string(req.Requester),
		Target:  string(req.Target),
		UIState: uiState,
	})
}

func viewMsg(resp consent.ViewResponse, nowTick uint64, uiState bool) protocol.ViewConsentMsg {
	prefs := make(map[string]int, len(resp.Preferences))
	for k, v := range resp.Preferences {
		prefs[string(k)] = int(v)
	}
	return protocol.ViewConsentMsg{
		Type:            protocol.TypeViewConsent,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		TargetID:        string(resp.Target),
		TargetName:      resp.TargetName,
		Preferences:     prefs,
		UIState:         uiState,
	}
}

func (w *World) bindView(target, viewer consent.EntityID) {
	m := w.views[target]
	if m == nil {
		m = map[consent.EntityID]bool{}
		w.views[target] = m
	}
	m[viewer] = true
}

func (w *World) unbindView(target, viewer consent.EntityID) {
	m := w.views[target]
	if m == nil {
		return
	}
	delete(m, viewer)
	if len(m) == 0 {
		delete(w.views, target)
	}
}

// unbindViewer drops every view viewer has open, without notifying it.
func (w *World) unbindViewer(viewer consent.EntityID) {
	for target := range w.views {
		w.unbindView(target, viewer)
	}
}

// closeViewsOf closes every bound view of target and tells each viewer.
func (w *World) closeViewsOf(target consent.EntityID, nowTick uint64) {
	for _, viewer := range w.viewersOf(target) {
		w.send(viewer, protocol.ViewConsentMsg{
			Type:            protocol.TypeViewConsent,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			TargetID:        string(target),
			TargetName:      w.DisplayName(target),
			Preferences:     map[string]int{},
			UIState:         true,
			Closed:          true,
		})
	}
	delete(w.views, target)
}

// repushViews sends fresh state to every viewer bound to target. A viewer
// that no longer passes validation is unbound.
func (w *World) repushViews(target consent.EntityID, nowTick uint64) {
	for _, viewer := range w.viewersOf(target) {
		resp, ok := consent.HandleViewRequest(consent.ViewRequest{Requester: viewer, Target: target}, w, w.consent)
		if !ok {
			w.unbindView(target, viewer)
			continue
		}
		w.sendState(viewer, target, viewMsg(resp, nowTick, true))
	}
}

func (w *World) viewersOf(target consent.EntityID) []consent.EntityID {
	m := w.views[target]
	out := make([]consent.EntityID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type reloadReq struct {
	cats *catalogs.Catalogs
	resp chan int
}

// ReloadCatalogs swaps in a freshly loaded catalog. Every attached store is
// back-filled for new topics and connected clients get the new CATALOG.
// It returns how many preference entries were added.
func (w *World) ReloadCatalogs(ctx context.Context, cats *catalogs.Catalogs) (int, error) {
	req := reloadReq{cats: cats, resp: make(chan int, 1)}
	select {
	case w.reload <- req:
	case <-w.stop:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-req.resp:
		return n, nil
	case <-w.stop:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleReload(req reloadReq) {
	if req.cats == nil {
		req.resp <- 0
		return
	}
	w.catalogs = req.cats
	added := w.consent.Refresh(&req.cats.Consents)
	for _, id := range w.sortedClientIDs() {
		for _, msg := range w.buildCatalogMsgs(w.clients[id].Printer) {
			w.send(id, msg)
		}
	}
	w.log.WithFields(logrus.Fields{"digest": req.cats.Consents.Digest, "added": added}).Info("consent catalog reloaded")
	req.resp <- added
}
