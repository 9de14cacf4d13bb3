package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/model"
	"github.com/lnrs/assessment-portal/internal/response"
	ws "github.com/lnrs/assessment-portal/internal/websocket"
)

// actionTimeout bounds a single session call made on behalf of a message.
const actionTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session updates to the candidate and accepts session
// actions over the same connection.
type WSHandler struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream?token=...
// Sends the current state, then every update (ticks, warnings, violations,
// completion). The connection is closed once the session has finished.
func (h *WSHandler) SessionStream(c *gin.Context) {
	s := middleware.GetSession(c)
	if s == nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", s.ID()).
		Int("candidate_id", s.CandidateID()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	replies := make(chan any, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		// Unblocks the reader below.
		defer conn.Close()
		h.writeLoop(ctx, conn, wsLog, s, updates, replies)
	}()

	ws.KeepAlive(conn)
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(ctx, s, &msg)
		select {
		case replies <- reply:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

// writeLoop is the only writer on conn.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, s *engine.Session, updates <-chan engine.Update, replies <-chan any) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()

	if snap, err := s.Snapshot(ctx); err == nil {
		if err := ws.WriteTyped(conn, engine.Update{Kind: engine.UpdateState, State: &snap}); err != nil {
			return
		}
	} else if report, ok := s.Report(); ok {
		ws.WriteTyped(conn, engine.Update{Kind: engine.UpdateCompleted, Report: &report})
		ws.WriteClose(conn, "session completed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				ws.WriteClose(conn, "session closed")
				return
			}
			if err := ws.WriteTyped(conn, u); err != nil {
				log.Debug().Err(err).Msg("Write update failed")
				return
			}
		case r := <-replies:
			if err := ws.WriteTyped(conn, r); err != nil {
				log.Debug().Err(err).Msg("Write reply failed")
				return
			}
		case <-ping.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

// dispatch applies one client message to the session and builds the reply.
func (h *WSHandler) dispatch(parent context.Context, s *engine.Session, msg *ws.RequestPayload) any {
	if msg.Action == ws.ActionPing {
		return ws.PongResponse{Event: ws.EventPong, ID: msg.ID}
	}

	ctx, cancel := context.WithTimeout(parent, actionTimeout)
	defer cancel()

	var err error
	switch msg.Action {
	case ws.ActionNavigate:
		err = navigate(ctx, s, model.NavigateRequest{Action: msg.Move, SectionID: msg.SectionID, Index: msg.Index})
	case ws.ActionAnswer:
		err = s.SelectAnswer(ctx, msg.SectionID, msg.QuestionIndex, msg.Answer)
	case ws.ActionVisibility:
		err = s.Visibility(ctx, msg.Hidden)
	case ws.ActionSubmit:
		err = s.Submit(ctx)
	default:
		return ws.ErrorResponse{
			Event: ws.EventError,
			ID:    msg.ID,
			Code:  string(response.ErrInvalidPayload),
			Error: "unknown action: " + string(msg.Action),
		}
	}
	if err != nil {
		status, code := classify(err)
		text := err.Error()
		if status >= http.StatusInternalServerError {
			text = response.GetMessage(code)
		}
		return ws.ErrorResponse{Event: ws.EventError, ID: msg.ID, Code: string(code), Error: text}
	}
	return ws.AckResponse{Event: ws.EventAck, ID: msg.ID, Action: msg.Action}
}
