package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"mocktest-service/internal/app"
	"mocktest-service/internal/domain"
)

// AttemptHandler drives one attempt session per WebSocket connection.
type AttemptHandler struct {
	service  *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewAttemptHandler(service *app.AttemptService, logger *zap.Logger) *AttemptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptHandler{
		service: service,
		log:     logger,
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

type answerPayload struct {
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the attempt use cases.
//
// Inbound: answer {option}, clear, mark, next, previous, jump {sectionIndex, questionIndex}, submit.
// Outbound: state (View after every change), submitted (AttemptRecord), error.
func (h *AttemptHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	userID := r.URL.Query().Get("userId")
	name := r.URL.Query().Get("name")
	if testID == "" || userID == "" || name == "" {
		http.Error(w, "missing testId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session, err := h.service.Open(r.Context(), userID, name, testID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	updates, cancel, err := h.service.Subscribe(session)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()
	defer func() {
		if session.State() != app.StateSubmitted {
			h.service.Leave(context.Background(), session)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.dispatch(r.Context(), session, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch applies one command. State changes reach the client through the
// subscription, so only errors and submission results are answered directly.
func (h *AttemptHandler) dispatch(ctx context.Context, session *app.Session, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil || payload.Option == nil {
			return errorMessage(domain.ErrInvalidOption), true
		}
		_, err = session.Select(*payload.Option)
	case "clear":
		_, err = session.Clear()
	case "mark":
		_, err = session.ToggleMark()
	case "next":
		_, err = session.Next()
	case "previous":
		_, err = session.Previous()
	case "jump":
		var pos domain.Position
		if jsonErr := json.Unmarshal(inbound.Payload, &pos); jsonErr != nil {
			return errorMessage(domain.ErrInvalidPosition), true
		}
		_, err = session.Jump(pos)
	case "submit":
		record, submitErr := h.service.Submit(ctx, session, false)
		if submitErr != nil {
			return errorMessage(submitErr), true
		}
		return outboundMessage[any]{Type: "submitted", Payload: record}, true
	default:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "unsupported", Message: "unsupported message type"}}, true
	}
	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage[any]{}, false
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrDefinitionNotFound):
		return "definition_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return "submission_in_flight"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, domain.ErrSubmissionFailed):
		return "submission_failed"
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, domain.ErrAttemptNotFound):
		return "attempt_not_found"
	default:
		return "internal_error"
	}
}
