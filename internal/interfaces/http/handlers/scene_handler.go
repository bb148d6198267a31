package handlers

import (
	"net/http"

	"github.com/turtacn/molscene/internal/application/scene"
	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/infrastructure/monitoring/logging"
)

// SceneHandler exposes the scene service's runtime controls.
type SceneHandler struct {
	svc    scene.Service
	logger logging.Logger
}

func NewSceneHandler(svc scene.Service, logger logging.Logger) *SceneHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SceneHandler{svc: svc, logger: logger}
}

// RibbonState is the body of GET and PUT /api/v1/scene/ribbon.
type RibbonState struct {
	Form         string `json:"form"`
	Smoothing    *bool  `json:"smoothing,omitempty"`
	CacheEntries int    `json:"cache_entries"`
}

// InvalidationRequest is the body of POST /api/v1/scene/invalidations. An
// empty StructureID drops everything.
type InvalidationRequest struct {
	StructureID string `json:"structure_id"`
	ChainID     string `json:"chain_id"`
}

func (h *SceneHandler) state() RibbonState {
	cfg := h.svc.RibbonConfig()
	smoothing := cfg.Smoothing
	return RibbonState{
		Form:         string(cfg.Form),
		Smoothing:    &smoothing,
		CacheEntries: h.svc.Cache().Len(),
	}
}

// GetRibbon handles GET /api/v1/scene/ribbon.
func (h *SceneHandler) GetRibbon(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

// SetRibbon handles PUT /api/v1/scene/ribbon. Smoothing keeps its current
// value when omitted.
func (h *SceneHandler) SetRibbon(w http.ResponseWriter, r *http.Request) {
	var req RibbonState
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	cfg := h.svc.RibbonConfig()
	if req.Form != "" {
		form, err := geometry.ParseRibbonForm(req.Form)
		if err != nil {
			writeAppError(w, err)
			return
		}
		cfg.Form = form
	}
	if req.Smoothing != nil {
		cfg.Smoothing = *req.Smoothing
	}

	if err := h.svc.SetRibbonConfig(r.Context(), cfg); err != nil {
		writeAppError(w, err)
		return
	}
	h.logger.Info("ribbon configuration updated over http", logging.String(logging.FieldForm, string(cfg.Form)))
	writeJSON(w, http.StatusOK, h.state())
}

// Invalidate handles POST /api/v1/scene/invalidations.
func (h *SceneHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if err := h.svc.ApplyInvalidation(r.Context(), req.StructureID, req.ChainID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
