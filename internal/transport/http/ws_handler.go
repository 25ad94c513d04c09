package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/events"
)

// ReportSubscriber delivers failure reports for one play session.
type ReportSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Report, error)
}

type WSHandler struct {
	service    *app.QuizService
	reports    ReportSubscriber
	defaultSet string
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, reports ReportSubscriber, defaultSet string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:    service,
		reports:    reports,
		defaultSet: defaultSet,
		logger:     logger,
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
	Index *int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets and runs one play session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	setID := r.URL.Query().Get("set")
	if setID == "" {
		setID = h.defaultSet
	}
	if setID == "" {
		http.Error(w, "missing set", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(r.Context())
	defer cancelCtx()

	// Reports must be subscribed before the session exists so a fast load
	// failure is not missed.
	sessionID := app.NewSessionID()
	reports, err := h.reports.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}

	if _, err := h.service.Open(ctx, sessionID, setID); err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer h.service.Close(context.Background(), sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	relayDone := make(chan struct{})

	// Single writer goroutine: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(relayDone)
		for {
			var msg outboundMessage[any]
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "state", Payload: update}
			case report, ok := <-reports:
				if !ok {
					reports = nil
					continue
				}
				msg = errorMessage(report.Message)
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.handle(ctx, sessionID, inbound); err != nil {
			reply(errorMessage(err.Error()))
		}
	}

	close(closeSignals)
	<-relayDone
	close(send)
	<-writerDone
}

// handle dispatches one client message. State changes reach the client through
// the snapshot subscription, so only failures are returned here.
func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage) error {
	var err error
	switch inbound.Type {
	case "start":
		_, err = h.service.Start(ctx, sessionID)
	case "answer":
		var payload answerPayload
		if jerr := json.Unmarshal(inbound.Payload, &payload); jerr != nil || payload.Index == nil {
			return errInvalidAnswer
		}
		_, err = h.service.Answer(ctx, sessionID, *payload.Index)
	case "advance":
		_, err = h.service.Advance(ctx, sessionID)
	case "restart":
		_, err = h.service.Restart(ctx, sessionID)
	default:
		return errUnsupported
	}
	return err
}
