package http

import (
	"encoding/json"
	"net/http"
	"time"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// MatchFeed hands out per-match event subscriptions.
type MatchFeed interface {
	Subscribe(matchID string) (<-chan domain.MatchEvent, func())
}

type WSHandler struct {
	matches  *app.MatchService
	answers  *app.AnswerProcessor
	feed     MatchFeed
	validate *validator.Validate
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(matches *app.MatchService, answers *app.AnswerProcessor, feed MatchFeed, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		matches:  matches,
		answers:  answers,
		feed:     feed,
		validate: newValidator(),
		logger:   logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams match events for ?matchId=. When playerId is given the
// connection may also submit answers as that player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("matchId")
	playerID := r.URL.Query().Get("playerId")
	if matchID == "" {
		http.Error(w, "missing matchId", http.StatusBadRequest)
		return
	}
	match, err := h.matches.GetMatch(r.Context(), matchID)
	if err != nil {
		status := http.StatusInternalServerError
		if domain.IsNotFound(err) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	// Subscribe before the snapshot so no event between the two is lost.
	events, cancel := h.feed.Subscribe(matchID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	send <- outboundMessage[any]{Type: "snapshot", Payload: match}
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes. Closing conn on a
	// failed write unblocks the read loop.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("match_id", matchID), zap.Error(err))
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "match", Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

loop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply := errorMessage("unsupported message type")
		if inbound.Type == "answer" {
			reply = h.answer(r, matchID, playerID, inbound.Payload)
		}
		select {
		case send <- reply:
		case <-writerDone:
			break loop
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) answer(r *http.Request, matchID, playerID string, raw json.RawMessage) outboundMessage[any] {
	if playerID == "" {
		return errorMessage("connect with playerId to answer")
	}
	var req answerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorMessage("invalid answer payload")
	}
	// The connection's player wins over any playerId in the payload.
	req.PlayerID = playerID
	if err := h.validate.Struct(req); err != nil {
		_, body := classify(validationError(err))
		return errorMessage(body.Error)
	}
	sub, err := req.submission(matchID)
	if err != nil {
		_, body := classify(err)
		return errorMessage(body.Error)
	}
	result, err := h.answers.SubmitAnswer(r.Context(), sub)
	if err != nil {
		if status, body := classify(err); status != http.StatusInternalServerError {
			return errorMessage(body.Error)
		}
		h.logger.Error("ws answer failed", zap.String("match_id", matchID), zap.Error(err))
		return errorMessage("internal error")
	}
	return outboundMessage[any]{Type: "answerResult", Payload: result}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
