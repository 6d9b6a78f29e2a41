package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizcraft/quizcraft-backend/internal/middleware"
	"github.com/quizcraft/quizcraft-backend/internal/response"
	"github.com/quizcraft/quizcraft-backend/internal/service"
	ws "github.com/quizcraft/quizcraft-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
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

// WSHandler serves quiz rooms: clients in the same quiz see each other's answer events.
type WSHandler struct {
	quizService  *service.QuizService
	relayService *service.RelayService
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(quizService *service.QuizService, relayService *service.RelayService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		quizService:  quizService,
		relayService: relayService,
		log:          log.With().Str("component", "ws_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
	}
}

// roomConn serializes writes; gorilla allows a single concurrent writer.
type roomConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (rc *roomConn) write(v interface{}) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return ws.WriteTyped(rc.conn, v)
}

func (rc *roomConn) writeError(msg string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return ws.WriteError(rc.conn, msg)
}

// QuizRoom godoc
// WS /ws/v1/quizzes/:id/room?token=...
// Joins the quiz room. submit_answer messages are relayed to every other
// participant as answer_submitted events.
func (h *WSHandler) QuizRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}

	// Visibility is checked before the upgrade so errors use the JSON envelope.
	if _, err := h.quizService.Get(c.Request.Context(), quizID, claims.UserID); err != nil {
		failService(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connID := uuid.NewString()
	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("quiz_id", quizID.String()).
		Str("conn_id", connID).
		Logger()

	sub, err := h.relayService.Subscribe(ctx, quizID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Room subscribe failed")
		ws.WriteError(conn, "room unavailable")
		return
	}
	defer sub.Close()

	pub := h.relayService.NewPublisher(ctx, quizID)
	defer pub.Close()

	rc := &roomConn{conn: conn}
	if err := rc.write(ws.JoinedResponse{Event: ws.EventJoined, QuizID: quizID}); err != nil {
		return
	}

	wsLog.Info().Msg("Joined quiz room")

	// Fan room messages out to this client, skipping its own.
	go func() {
		for msg := range sub.Channel() {
			room, err := h.relayService.Decode(msg.Payload)
			if err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed room message")
				continue
			}
			if room.SenderID == connID {
				continue
			}
			if err := rc.write(ws.RoomEventResponse{
				Event:  ws.Event(room.Event),
				UserID: room.UserID,
				Data:   room.Data,
			}); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionSubmitAnswer:
			pub.Send(service.RoomMessage{
				SenderID: connID,
				UserID:   claims.UserID,
				Event:    string(ws.EventAnswerSubmitted),
				Data:     msg.Data,
			})
		case ws.ActionPing:
			rc.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			rc.writeError("unknown action: " + string(msg.Action))
		}
	}
}
