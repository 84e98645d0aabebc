package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynccalc/internal/auth"
	"asynccalc/internal/models"
	"asynccalc/internal/types"
)

const (
	maxExpressionLength = 4096
	maxBodyBytes        = 64 << 10
)

type Handler struct {
	svc CalculationService
	log zerolog.Logger
}

func NewHandler(svc CalculationService, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger.With().Str("component", "http").Logger()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req types.CalculateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Expression) == "" {
		SendErrorResponse(w, http.StatusBadRequest, "expression is required")
		return
	}
	if len(req.Expression) > maxExpressionLength {
		SendErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("expression is longer than %d bytes", maxExpressionLength))
		return
	}

	calc, err := h.svc.Create(r.Context(), req.Expression, user)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/calculations/"+calc.ID.String())
	SendJSON(w, http.StatusAccepted, types.FromCalculation(calc))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "invalid calculation id")
		return
	}

	calc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	// other users' calculations are indistinguishable from missing ones
	if calc.CreatedBy.ID != user.ID {
		h.sendError(w, r, fmt.Errorf("%w: %s", models.ErrNotFound, id))
		return
	}
	SendJSON(w, http.StatusOK, types.FromCalculation(calc))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	filter, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	filter.CreatedBy = &user.ID

	calcs, err := h.svc.List(r.Context(), filter, page)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, types.CalculationList{
		Calculations: types.FromCalculations(calcs),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, http.StatusBadRequest, "invalid calculation id")
		return
	}

	update, err := h.svc.Cancel(r.Context(), id, user)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, types.FromStatusUpdate(update))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Stats()
	SendJSON(w, http.StatusOK, types.Health{
		Status:   "ok",
		Pending:  stats.Pending,
		Running:  stats.Running,
		Capacity: stats.Capacity,
	})
}

// TokenInfoHandler reports how long issued tokens stay valid.
func TokenInfoHandler(ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendJSON(w, http.StatusOK, map[string]int{
			"expirationMinutes": int(ttl / time.Minute),
		})
	}
}

func parseListQuery(q url.Values) (models.CalculationFilter, models.Pagination, error) {
	statuses, err := models.ParseStatuses(q["status"])
	if err != nil {
		return models.CalculationFilter{}, models.Pagination{}, err
	}

	var limit, offset int
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return models.CalculationFilter{}, models.Pagination{}, fmt.Errorf("%w: limit must be an integer", models.ErrInvalidArgument)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return models.CalculationFilter{}, models.Pagination{}, fmt.Errorf("%w: offset must be an integer", models.ErrInvalidArgument)
		}
	}
	page, err := models.ClientPage(limit, offset)
	if err != nil {
		return models.CalculationFilter{}, models.Pagination{}, err
	}
	return models.CalculationFilter{Statuses: statuses}, page, nil
}
