package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
	"github.com/Scylla-Station/Scylla-Station/internal/protocol"
	"github.com/Scylla-Station/Scylla-Station/internal/sim/world"
)

// ProfileLoader reads a player's saved preferences at session start.
type ProfileLoader interface {
	LoadPreferences(ctx context.Context, profileID int64) (consent.PreferenceMap, error)
}

type Options struct {
	Profiles ProfileLoader
	// AuthToken, when set, must match HELLO auth.token.
	AuthToken string
	// DefaultQueue is the outbound queue length when HELLO does not ask.
	DefaultQueue int
}

type Server struct {
	world     *world.World
	log       logrus.FieldLogger
	validator *protocol.Validator
	opts      Options

	upgrader websocket.Upgrader
}

type session struct {
	id       string
	entityID consent.EntityID
	encoding string
	out      chan []byte
}

func NewServer(w *world.World, logger logrus.FieldLogger, opts Options) (*Server, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.DefaultQueue <= 0 {
		opts.DefaultQueue = 16
	}
	s := &Server{
		world:     w,
		log:       logger.WithField("component", "ws"),
		validator: v,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(r.Context(), conn)
		if sess == nil {
			return
		}
		log := s.log.WithFields(logrus.Fields{"entity": sess.entityID, "session": sess.id})
		log.Info("session started")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			frame := frameType(sess.encoding)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.out:
					if !ok {
						// The world gave up on this session.
						closeWith(conn, websocket.ClosePolicyViolation, "too slow")
						_ = conn.Close()
						cancel()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(frame, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			act, ok := s.decodeAct(sess, mt, msg, log)
			if !ok {
				continue
			}
			select {
			case s.world.Inbox() <- world.ActionEnvelope{EntityID: sess.entityID, Act: act}:
			case <-ctx.Done():
			case <-s.world.Done():
			}
		}

		// Cleanup.
		s.leave(sess)
		log.Info("session ended")
	}
}

// decodeAct turns one client frame into an ACT. Malformed frames are
// answered with an E_PROTO_BAD_REQUEST ack and otherwise ignored.
func (s *Server) decodeAct(sess *session, mt int, msg []byte, log logrus.FieldLogger) (protocol.ActMsg, bool) {
	var act protocol.ActMsg
	raw, err := toJSON(mt, msg)
	if err != nil {
		s.reject(sess, "", err.Error())
		return act, false
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		s.reject(sess, "", "malformed message")
		return act, false
	}
	if base.Type != protocol.TypeAct {
		log.WithField("type", base.Type).Debug("ignoring non-ACT message")
		return act, false
	}
	if err := s.validator.ValidateAct(raw); err != nil {
		s.reject(sess, "", err.Error())
		return act, false
	}
	if err := json.Unmarshal(raw, &act); err != nil {
		s.reject(sess, "", "malformed ACT")
		return act, false
	}
	if act.ProtocolVersion != protocol.Version {
		s.reject(sess, "", "bad protocol_version")
		return act, false
	}
	return act, true
}

func (s *Server) reject(sess *session, ackFor, message string) {
	b, err := protocol.Marshal(sess.encoding, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        false,
		Code:            protocol.ErrProtoBadRequest,
		Message:         message,
	})
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	raw, err := toJSON(mt, msg)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	if err := s.validator.ValidateHello(raw); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "invalid HELLO")
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(raw, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil
	}
	if s.opts.AuthToken != "" && (hello.Auth == nil || hello.Auth.Token != s.opts.AuthToken) {
		closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
		return nil
	}

	encoding := hello.Encoding
	if encoding == "" {
		encoding = protocol.EncodingJSON
	}
	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = s.opts.DefaultQueue
	}
	if maxQ > 64 {
		maxQ = 64
	}
	sess := &session{
		id:       uuid.NewString(),
		encoding: encoding,
		out:      make(chan []byte, maxQ),
	}

	// Optional: resume an existing entity (reconnect).
	resumeToken := ""
	if hello.Auth != nil {
		resumeToken = strings.TrimSpace(hello.Auth.ResumeToken)
	}

	var (
		resp world.JoinResponse
		ok   bool
	)
	if resumeToken != "" {
		respCh := make(chan world.JoinResponse, 1)
		req := world.AttachRequest{
			ResumeToken: resumeToken,
			SessionID:   sess.id,
			Encoding:    encoding,
			Locale:      hello.Locale,
			Out:         sess.out,
			Resp:        respCh,
		}
		if !enqueue(ctx, s.world.Done(), s.world.Attach(), req) {
			closeWith(conn, websocket.CloseGoingAway, "server unavailable")
			return nil
		}
		if resp, ok = await(ctx, s.world.Done(), respCh); !ok {
			go s.leaveLate(respCh, sess.id)
			closeWith(conn, websocket.CloseGoingAway, "server unavailable")
			return nil
		}
		if resp.Err != "" {
			s.log.WithField("reason", resp.Err).Debug("resume refused; joining fresh")
		}
	}
	if resp.Welcome.EntityID == "" {
		// Fresh join. Saved rows are read here, off the world goroutine.
		var prefs consent.PreferenceMap
		if s.opts.Profiles != nil && hello.ProfileID > 0 {
			prefs, err = s.opts.Profiles.LoadPreferences(ctx, hello.ProfileID)
			if err != nil {
				s.log.WithError(err).WithField("profile", hello.ProfileID).Warn("profile load failed; joining with defaults")
				prefs = nil
			}
		}
		respCh := make(chan world.JoinResponse, 1)
		req := world.JoinRequest{
			Name:        hello.Name,
			SessionID:   sess.id,
			ProfileID:   hello.ProfileID,
			Preferences: prefs,
			Encoding:    encoding,
			Locale:      hello.Locale,
			Out:         sess.out,
			Resp:        respCh,
		}
		if !enqueue(ctx, s.world.Done(), s.world.Join(), req) {
			closeWith(conn, websocket.CloseGoingAway, "server unavailable")
			return nil
		}
		if resp, ok = await(ctx, s.world.Done(), respCh); !ok {
			go s.leaveLate(respCh, sess.id)
			closeWith(conn, websocket.CloseGoingAway, "server unavailable")
			return nil
		}
	}

	sess.entityID = consent.EntityID(resp.Welcome.EntityID)

	// Send welcome + catalogs immediately.
	if err := writeFrame(conn, encoding, resp.Welcome); err != nil {
		s.leave(sess)
		return nil
	}
	for _, c := range resp.Catalogs {
		if err := writeFrame(conn, encoding, c); err != nil {
			s.leave(sess)
			return nil
		}
	}
	return sess
}

// leaveTimeout bounds how long a closing session waits for room in the
// world's leave queue.
const leaveTimeout = 5 * time.Second

// leave detaches sess from its entity. It gives up once the world stops
// or the leave queue stays full past leaveTimeout.
func (s *Server) leave(sess *session) {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	req := world.LeaveRequest{EntityID: sess.entityID, SessionID: sess.id}
	if !enqueue(ctx, s.world.Done(), s.world.Leave(), req) {
		s.log.WithFields(logrus.Fields{"entity": sess.entityID, "session": sess.id}).
			Warn("leave not delivered")
	}
}

// leaveLate waits for a join or attach whose requester has gone away and
// detaches whatever entity it bound.
func (s *Server) leaveLate(respCh <-chan world.JoinResponse, sessionID string) {
	select {
	case resp := <-respCh:
		if resp.Welcome.EntityID != "" {
			s.leave(&session{id: sessionID, entityID: consent.EntityID(resp.Welcome.EntityID)})
		}
	case <-s.world.Done():
	}
}

// enqueue sends v on ch unless ctx ends or the world stops first.
func enqueue[T any](ctx context.Context, stopped <-chan struct{}, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	case <-stopped:
		return false
	}
}

// await receives from ch unless ctx ends or the world stops first.
func await[T any](ctx context.Context, stopped <-chan struct{}, ch <-chan T) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-ctx.Done():
	case <-stopped:
	}
	var zero T
	return zero, false
}

func toJSON(mt int, msg []byte) ([]byte, error) {
	if mt == websocket.BinaryMessage {
		return protocol.CBORToJSON(msg)
	}
	return msg, nil
}

func frameType(encoding string) int {
	if encoding == protocol.EncodingCBOR {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func writeFrame(conn *websocket.Conn, encoding string, v any) error {
	b, err := protocol.Marshal(encoding, v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(frameType(encoding), b)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
