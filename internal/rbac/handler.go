package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/learnhub/learnhub/internal/platform/httpx"
	"github.com/learnhub/learnhub/internal/shared"
)

// maxBatchActions caps the size of a single batch request.
const maxBatchActions = 32

// Handler exposes permission checks to action gates over HTTP.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	localizer *Localizer
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine, localizer *Localizer) *Handler {
	return &Handler{logger: logger, engine: engine, localizer: localizer, validator: validator.New()}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tier", h.tier)
	r.Post("/batch", h.batch)
	r.Get("/{action}", h.check)
}

type tierResponse struct {
	UserID string `json:"user_id,omitempty"`
	Tier   string `json:"tier"`
}

type batchRequest struct {
	Actions []string `json:"actions" validate:"required,min=1,max=32,dive,required"`
	OwnerID string   `json:"owner_id" validate:"omitempty,max=128"`
}

type batchResponse struct {
	Decisions map[string]Decision `json:"decisions"`
}

func (h *Handler) tier(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	tier := h.engine.Tier(r.Context(), actor)
	httpx.JSON(w, http.StatusOK, tierResponse{UserID: actor, Tier: tier.String()})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	action := Action(chi.URLParam(r, "action"))
	target := Target{ActorID: actor, OwnerID: strings.TrimSpace(r.URL.Query().Get("owner_id"))}
	d := h.engine.Check(r.Context(), action, actor, target)
	httpx.JSON(w, http.StatusOK, h.localize(r, d))
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Debug("rbac batch rejected", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: actions must list 1 to %d names", httpx.ErrValidation, maxBatchActions))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	decisions := h.engine.CheckMultipleOn(r.Context(), actor, strings.TrimSpace(req.OwnerID), req.Actions)
	for name, d := range decisions {
		decisions[name] = h.localize(r, d)
	}
	httpx.JSON(w, http.StatusOK, batchResponse{Decisions: decisions})
}

func (h *Handler) localize(r *http.Request, d Decision) Decision {
	return h.localizer.Localize(h.localizer.Match(r.Header.Get("Accept-Language")), d)
}
