package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/phishvars/personalize"
)

// PersonalizeHandler resolves fields and variables for one target.
type PersonalizeHandler struct {
	resolver *personalize.Resolver
	logger   *slog.Logger
}

// NewPersonalizeHandler creates a new PersonalizeHandler.
func NewPersonalizeHandler(resolver *personalize.Resolver, logger *slog.Logger) *PersonalizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonalizeHandler{resolver: resolver, logger: logger}
}

// ValueResponse is the body of GET /api/personalize/{name}.
type ValueResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Value string `json:"value"`
}

// RenderRequest is the body of POST /api/personalize/render.
type RenderRequest struct {
	Email string `json:"email"`
	Text  string `json:"text"`
}

// RenderResponse is the result of POST /api/personalize/render.
type RenderResponse struct {
	Text string `json:"text"`
}

// Value handles GET /api/personalize/{name}?email=.
func (h *PersonalizeHandler) Value(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	email := r.URL.Query().Get("email")
	if email == "" {
		WriteError(w, http.StatusBadRequest, "Email not specified")
		return
	}
	value, err := h.resolver.Value(r.Context(), uid, email, name)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "resolve failed", "name", name, "error", err)
		WriteError(w, http.StatusInternalServerError, "Error resolving value")
		return
	}
	WriteJSON(w, http.StatusOK, ValueResponse{Name: name, Email: email, Value: value})
}

// Render handles POST /api/personalize/render.
func (h *PersonalizeHandler) Render(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON structure")
		return
	}
	if req.Email == "" {
		WriteError(w, http.StatusBadRequest, "Email not specified")
		return
	}
	text, err := h.resolver.Render(r.Context(), uid, req.Email, req.Text)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "render failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Error rendering text")
		return
	}
	WriteJSON(w, http.StatusOK, RenderResponse{Text: text})
}
