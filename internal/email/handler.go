package email

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

type Handler struct {
	renderer *Renderer
	delay    func() time.Duration
	logger   *slog.Logger
}

func NewHandler(renderer *Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		delay: func() time.Duration {
			return time.Duration(50+rand.Intn(151)) * time.Millisecond
		},
		logger: logger,
	}
}

// sendRequest carries either a ready subject and body, or a template name
// with the data to render it.
type sendRequest struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Body     string         `json:"body"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Subject string `json:"subject"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.To == "" {
		h.writeError(w, http.StatusBadRequest, "missing recipient")
		return
	}

	if req.Template != "" {
		subject, body, err := h.renderer.Render(req.Template, req.Data)
		if err != nil {
			h.logger.Error("failed to render email", "error", err, "template", req.Template)
			h.writeError(w, http.StatusUnprocessableEntity, "cannot render template "+req.Template)
			return
		}
		req.Subject, req.Body = subject, body
	}

	time.Sleep(h.delay())

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject, "template", req.Template, "body_bytes", len(req.Body))

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", Subject: req.Subject})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
