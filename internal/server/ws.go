package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/repcam/internal/pose"
	"github.com/claude/repcam/internal/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const (
	// A 1080p JPEG as a data URL stays well below this.
	maxFrameSize = 8 << 20
	writeTimeout = 5 * time.Second
)

// wsReply is sent for every message received on a connection.
type wsReply struct {
	session.Update
	Error string `json:"error,omitempty"`
}

// handleWebSocket streams frames and commands for one session. The session is
// resumed when ?session=<id> names a live or checkpointed session and created
// otherwise. Messages are handled strictly in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var (
		sess     *session.Session
		restored bool
		err      error
	)
	if raw := r.URL.Query().Get("session"); raw != "" {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
			return
		}
		sess, restored, err = s.sessions.Open(r.Context(), id)
	} else {
		sess, err = s.sessions.Create(r.Context())
	}
	if err != nil {
		s.log.Error("opening session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("websocket accept failed", "session", sess.ID(), "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameSize)

	sess.Attach()
	defer sess.Detach()

	// Checkpoint writes detach from ctx so a disconnect cannot cut them short.
	ctx := r.Context()
	s.log.Info("client connected", "session", sess.ID(), "restored", restored, "remote", r.RemoteAddr)

	if err := s.reply(ctx, conn, wsReply{Update: sess.Snapshot()}); err != nil {
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			s.logDisconnect(sess, err)
			s.sessions.Persist(context.WithoutCancel(ctx), sess)
			return
		}
		if sess.Closed() {
			s.log.Info("closing connection to removed session", "session", sess.ID())
			conn.Close(websocket.StatusNormalClosure, "session removed")
			return
		}

		reply := s.handleMessage(ctx, sess, typ, data)
		s.sessions.Persist(context.WithoutCancel(ctx), sess)
		if err := s.reply(ctx, conn, reply); err != nil {
			s.logDisconnect(sess, err)
			return
		}
	}
}

// handleMessage turns one client message into a counter update.
func (s *Server) handleMessage(ctx context.Context, sess *session.Session, typ websocket.MessageType, data []byte) wsReply {
	if typ == websocket.MessageBinary {
		return s.handleImage(ctx, sess, data)
	}

	text := bytes.TrimSpace(data)
	if cmd, ok := session.ParseCommand(string(text)); ok {
		u, err := sess.Apply(cmd)
		if err != nil {
			return errorReply(sess, err)
		}
		s.log.Info("command", "session", sess.ID(), "command", cmd, "count", u.Count)
		return wsReply{Update: u}
	}

	if len(text) > 0 && text[0] == '{' {
		joints, err := parsePoseMessage(text)
		if err != nil {
			return errorReply(sess, err)
		}
		return wsReply{Update: sess.HandlePose(joints)}
	}

	frame, err := session.DecodeFrame(string(text))
	if err != nil {
		return errorReply(sess, err)
	}
	return s.handleImage(ctx, sess, frame)
}

func (s *Server) handleImage(ctx context.Context, sess *session.Session, frame []byte) wsReply {
	u, err := sess.HandleImage(ctx, frame)
	if err != nil {
		if !errors.Is(err, session.ErrNoDetector) {
			s.log.Warn("frame dropped", "session", sess.ID(), "error", err)
		}
		return errorReply(sess, err)
	}
	return wsReply{Update: u}
}

// parsePoseMessage decodes {"joints": {...}} or {"joints": null}; the latter
// means no person was found in the frame.
func parsePoseMessage(data []byte) (*pose.Joints, error) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid pose message: %w", err)
	}
	raw, ok := msg["joints"]
	if !ok {
		return nil, fmt.Errorf("pose message has no joints field")
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var j pose.Joints
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("invalid joints: %w", err)
	}
	return &j, nil
}

func errorReply(sess *session.Session, err error) wsReply {
	return wsReply{Update: sess.Snapshot(), Error: err.Error()}
}

func (s *Server) reply(ctx context.Context, conn *websocket.Conn, reply wsReply) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, reply)
}

func (s *Server) logDisconnect(sess *session.Session, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		s.log.Info("client disconnected", "session", sess.ID())
	default:
		s.log.Warn("client connection lost", "session", sess.ID(), "error", err)
	}
}
