package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/i18n"
	"github.com/Scylla-Station/Scylla-Station/internal/logging"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
)

func main() {
	fs := pflag.NewFlagSet("bot", pflag.ExitOnError)
	var (
		url      = fs.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = fs.String("name", "bot", "player name")
		profile  = fs.Int64("profile", 0, "profile id to load preferences from (0 = none)")
		encoding = fs.String("encoding", protocol.EncodingJSON, "frame encoding (json|cbor)")
		locale   = fs.String("locale", "en-US", "display locale")
		token    = fs.String("token", "", "server auth token")
		target   = fs.String("target", "", "entity to view (default: self)")
		watch    = fs.Bool("watch", false, "keep running and print every view push")
		logLevel = fs.String("log-level", "info", "log level")
		sets     = fs.StringToString("set", nil, "preferences to set before viewing (Topic=Level,...)")
	)
	_ = fs.Parse(os.Args[1:])

	logger := logging.New(*logLevel, "text").WithField("bot", *name)
	texts, err := i18n.LoadEmbedded()
	if err != nil {
		logger.Fatalf("load locales: %v", err)
	}
	printer := texts.Printer(*locale)

	edits, err := parseEdits(*sets)
	if err != nil {
		logger.Fatalf("--set: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		ProfileID:       *profile,
		Encoding:        *encoding,
		MaxQueue:        8,
		Locale:          *locale,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var topicOrder []string
	for {
		select {
		case <-stop:
			return
		default:
		}

		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Debug("read")
			return
		}
		if mt == websocket.BinaryMessage {
			if msg, err = protocol.CBORToJSON(msg); err != nil {
				logger.WithError(err).Warn("bad cbor frame")
				continue
			}
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.WithFields(logrus.Fields{
				"entity":   w.EntityID,
				"delivery": w.ViewDelivery,
				"topics":   w.Catalogs.Consent.Count,
			}).Info("WELCOME")
			viewOf := *target
			if viewOf == "" {
				viewOf = w.EntityID
			}
			if err := sendAct(conn, *encoding, buildAct(w.EntityID, viewOf, edits)); err != nil {
				logger.Fatalf("send ACT: %v", err)
			}

		case protocol.TypeCatalog:
			var c struct {
				Name string                      `json:"name"`
				Data protocol.ConsentCatalogData `json:"data"`
			}
			if err := json.Unmarshal(msg, &c); err != nil || c.Name != "consent" {
				continue
			}
			topicOrder = topicOrder[:0]
			for _, t := range c.Data.Topics {
				topicOrder = append(topicOrder, t.ID)
			}

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err != nil {
				continue
			}
			if !a.Accepted {
				logger.WithFields(logrus.Fields{"ack_for": a.AckFor, "code": a.Code}).Warn(a.Message)
			}

		case protocol.TypeViewConsent:
			var v protocol.ViewConsentMsg
			if err := json.Unmarshal(msg, &v); err != nil {
				continue
			}
			fmt.Println(strings.Join(renderView(printer, v, topicOrder), "\n"))
			if !*watch {
				return
			}
		}
	}
}

type edit struct {
	topic string
	level consent.Level
}

func parseEdits(raw map[string]string) ([]edit, error) {
	out := make([]edit, 0, len(raw))
	for topic, s := range raw {
		lvl, err := consent.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", topic, err)
		}
		out = append(out, edit{topic: topic, level: lvl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].topic < out[j].topic })
	return out, nil
}

func buildAct(self, target string, edits []edit) protocol.ActMsg {
	act := protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version}
	for i, e := range edits {
		lvl := int(e.level)
		act.Instants = append(act.Instants, protocol.InstantReq{
			ID:       fmt.Sprintf("set_%d", i+1),
			Type:     protocol.InstantSetConsent,
			TargetID: self,
			Topic:    e.topic,
			Level:    &lvl,
		})
	}
	act.Instants = append(act.Instants, protocol.InstantReq{
		ID:       "view_1",
		Type:     protocol.InstantViewConsentReq,
		TargetID: target,
	})
	return act
}

func sendAct(conn *websocket.Conn, encoding string, act protocol.ActMsg) error {
	b, err := protocol.Marshal(encoding, act)
	if err != nil {
		return err
	}
	mt := websocket.TextMessage
	if encoding == protocol.EncodingCBOR {
		mt = websocket.BinaryMessage
	}
	return conn.WriteMessage(mt, b)
}

// renderView formats a consent view in catalog order; topics the catalog
// didn't list come last, sorted.
func renderView(p *i18n.Printer, v protocol.ViewConsentMsg, order []string) []string {
	title := p.Text("consent-window-title", v.TargetName)
	if v.Closed {
		return []string{title + " (closed)"}
	}
	lines := []string{title}
	seen := make(map[string]bool, len(order))
	emit := func(topic string) {
		lvl, ok := v.Preferences[topic]
		if !ok || seen[topic] {
			return
		}
		seen[topic] = true
		l := consent.Level(lvl)
		lines = append(lines, fmt.Sprintf("  %-24s %-20s %s", topic, p.LevelText(l), i18n.LevelColor(l)))
	}
	for _, t := range order {
		emit(t)
	}
	var rest []string
	for t := range v.Preferences {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	for _, t := range rest {
		emit(t)
	}
	return lines
}
