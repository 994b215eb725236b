package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/okian/arena/internal/domain/verify"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Frame types exchanged on the verification socket.
const (
	frameSnapshot = "snapshot"
	frameError    = "error"
	frameRetry    = "retry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin; the bearer token gates the stream.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serverFrame is pushed to the client.
type serverFrame struct {
	Type     string           `json:"type"`
	Snapshot *verify.Snapshot `json:"snapshot,omitempty"`
	Code     string           `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// clientFrame is read from the client.
type clientFrame struct {
	Type string `json:"type"`
}

// VerifyHandler streams payment verification over a websocket.
type VerifyHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewVerifyHandler creates a new verification stream handler.
func NewVerifyHandler(deps Dependencies, l logger.Logger) *VerifyHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &VerifyHandler{deps: deps, logger: l}
}

// ServeWS handles GET /ws/verify/{reference}. The poller lives exactly as
// long as the connection: every state change is pushed as a snapshot
// frame, a {"type":"retry"} frame triggers a manual retry, and closing the
// socket cancels any request in flight.
func (h *VerifyHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing reference")
		return
	}
	sess := SessionFromContext(r.Context())
	if sess.Token() == "" {
		respondError(w, verify.ErrMissingCredentials)
		return
	}

	changed := make(chan struct{}, 1)
	poller, err := h.deps.NewPoller(sess, reference, verify.WithOnChange(func(verify.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		respondError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.String("reference", reference), logger.Error(err))
		return
	}
	metrics.AddWebsocketSessions(1)
	defer metrics.AddWebsocketSessions(-1)

	s := &verifySession{
		conn:    conn,
		poller:  poller,
		changed: changed,
		errs:    make(chan serverFrame, 8),
		logger:  h.logger.With(logger.String("reference", reference)),
	}
	s.serve(r.Context())
}

type verifySession struct {
	conn    *websocket.Conn
	poller  *verify.Poller
	changed <-chan struct{}
	errs    chan serverFrame
	logger  logger.Logger
	wg      sync.WaitGroup
}

func (s *verifySession) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	runDone := make(chan error, 1)
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		runDone <- s.poller.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.readPump(ctx)
	}()
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.writePump(ctx, runDone)
	}()

	s.wg.Wait()
	s.logger.Debug(context.Background(), "verification socket closed")
}

// readPump handles retry frames until the client goes away.
func (s *verifySession) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn(ctx, "verification socket read failed", logger.Error(err))
			}
			return
		}

		var in clientFrame
		if err := json.Unmarshal(msg, &in); err != nil || in.Type != frameRetry {
			s.pushError(ctx, codeBadRequest, `unsupported message; send {"type":"retry"}`)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.poller.Retry(ctx)
			switch {
			case errors.Is(err, verify.ErrRetryInFlight):
				s.pushError(ctx, codeConflict, "A retry is already in progress.")
			case errors.Is(err, verify.ErrRetryUnavailable):
				s.pushError(ctx, codeBadRequest, "Retry is only available after a failed check.")
			}
			// Backend failures reach the client as an error snapshot.
		}()
	}
}

func (s *verifySession) pushError(ctx context.Context, code, msg string) {
	select {
	case s.errs <- serverFrame{Type: frameError, Code: code, Message: msg}:
	case <-ctx.Done():
	}
}

// writePump is the only writer on the connection.
func (s *verifySession) writePump(ctx context.Context, runDone <-chan error) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	if err := s.writeSnapshot(); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "")
			return
		case err := <-runDone:
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					_, code, msg := errorStatus(err)
					_ = s.write(serverFrame{Type: frameError, Code: code, Message: msg})
				}
				s.writeClose(websocket.CloseNormalClosure, "")
				return
			}
			if s.writeSnapshot() == nil {
				s.writeClose(websocket.CloseNormalClosure, "verified")
			}
			return
		case <-s.changed:
			if err := s.writeSnapshot(); err != nil {
				return
			}
		case f := <-s.errs:
			if err := s.write(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *verifySession) writeSnapshot() error {
	snap := s.poller.Snapshot()
	return s.write(serverFrame{Type: frameSnapshot, Snapshot: &snap})
}

func (s *verifySession) write(f serverFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(f); err != nil {
		s.logger.Debug(context.Background(), "verification socket write failed", logger.Error(err))
		return err
	}
	return nil
}

func (s *verifySession) writeClose(code int, text string) {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
