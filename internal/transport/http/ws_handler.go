package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quizpool-service/internal/app"
	"quizpool-service/internal/domain"
)

// WSHandler exposes the quiz session engine over a websocket: the
// presentation layer supplies a quiz id and participant identity and
// receives question views, countdown ticks and the final graded result.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
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
	Option string `json:"option"`
}

type quizInfo struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Image           string `json:"image"`
	EntranceFee     int64  `json:"entranceFee"`
	TotalPool       int64  `json:"totalPool"`
	DurationSeconds int    `json:"durationSeconds"`
	TotalQuestions  int    `json:"totalQuestions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ServeWS upgrades the request and wires the connection into the session
// use cases. The session itself outlives the connection: a dropped client
// does not stop the countdown or the forced submission.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	participantID := r.URL.Query().Get("participantId")
	if quizID == "" || participantID == "" {
		http.Error(w, "missing quizId or participantId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Enter(r.Context(), quizID, participantID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{
			Message:   err.Error(),
			Retryable: errors.Is(err, domain.ErrDataUnavailable),
		}})
		return
	}

	updates, cancel, err := h.service.Subscribe(quizID, participantID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		resultSent := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				out := outboundMessage[any]{Type: "tick", Payload: update}
				select {
				case send <- out:
				case <-closeSignals:
					return
				}
				if update.State == app.StateGraded && !resultSent {
					if result, ok := session.Result(); ok {
						resultSent = true
						select {
						case send <- outboundMessage[any]{Type: "result", Payload: result}:
						case <-closeSignals:
							return
						}
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	quiz := session.Quiz()
	send <- outboundMessage[any]{Type: "quiz", Payload: quizInfo{
		ID:              quiz.ID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		Image:           quiz.Image,
		EntranceFee:     quiz.EntranceFee,
		TotalPool:       quiz.TotalPool,
		DurationSeconds: quiz.DurationSeconds,
		TotalQuestions:  len(quiz.Questions),
	}}
	if view, err := h.service.Current(quizID, participantID); err == nil {
		send <- outboundMessage[any]{Type: "question", Payload: view}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			view, err := h.service.Answer(quizID, participantID, payload.Option)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: view}
		case "next", "prev":
			delta := 1
			if inbound.Type == "prev" {
				delta = -1
			}
			view, err := h.service.Move(quizID, participantID, delta)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: view}
		case "submit":
			// The graded result reaches the client through the update pump,
			// which covers the timer-expiry path the same way.
			if _, err := h.service.Submit(r.Context(), quizID, participantID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
					Message:   err.Error(),
					Retryable: errors.Is(err, domain.ErrSubmissionFailed),
				}}
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: struct{}{}}
		case "retry":
			if err := h.service.RetrySubmit(r.Context(), quizID, participantID); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
					Message:   err.Error(),
					Retryable: errors.Is(err, domain.ErrSubmissionFailed),
				}}
				continue
			}
			send <- outboundMessage[any]{Type: "submitted", Payload: struct{}{}}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
