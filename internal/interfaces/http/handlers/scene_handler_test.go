package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscene/internal/application/scene"
	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/domain/structure"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

func newTestScene(t *testing.T) (scene.Service, *structure.Structure, *structure.Chain) {
	t.Helper()
	svc, err := scene.NewService(geometry.DefaultRibbonConfig())
	require.NoError(t, err)

	chain, err := structure.NewIdealChain("A", "ALA", structure.RepeatConformation(stypes.ConformationHelix, 10))
	require.NoError(t, err)
	s := structure.NewStructure("test")
	require.NoError(t, s.AddChain(chain))
	require.NoError(t, svc.Attach(s))
	require.True(t, svc.ChainGeometry(context.Background(), chain, 1).OK())
	return svc, s, chain
}

func TestSceneHandler_GetRibbon(t *testing.T) {
	svc, _, _ := newTestScene(t)
	h := NewSceneHandler(svc, nil)

	w := httptest.NewRecorder()
	h.GetRibbon(w, httptest.NewRequest(http.MethodGet, "/api/v1/scene/ribbon", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var state RibbonState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, "traditional", state.Form)
	require.NotNil(t, state.Smoothing)
	assert.True(t, *state.Smoothing)
	assert.Equal(t, 1, state.CacheEntries)
}

func TestSceneHandler_SetRibbon(t *testing.T) {
	svc, _, _ := newTestScene(t)
	h := NewSceneHandler(svc, nil)

	body := strings.NewReader(`{"form":"cylindrical"}`)
	w := httptest.NewRecorder()
	h.SetRibbon(w, httptest.NewRequest(http.MethodPut, "/api/v1/scene/ribbon", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, geometry.FormCylindricalHelices, svc.RibbonConfig().Form)
	assert.True(t, svc.RibbonConfig().Smoothing)
	assert.Zero(t, svc.Cache().Len())
}

func TestSceneHandler_SetRibbonErrors(t *testing.T) {
	svc, _, _ := newTestScene(t)
	h := NewSceneHandler(svc, nil)

	for _, body := range []string{`{"form":"spaghetti"}`, `{not json`, `{"colour":"red"}`} {
		w := httptest.NewRecorder()
		h.SetRibbon(w, httptest.NewRequest(http.MethodPut, "/api/v1/scene/ribbon", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, geometry.FormTraditional, svc.RibbonConfig().Form)
}

func TestSceneHandler_Invalidate(t *testing.T) {
	svc, s, _ := newTestScene(t)
	h := NewSceneHandler(svc, nil)

	body := strings.NewReader(`{"structure_id":"` + s.ID().String() + `","chain_id":"A"}`)
	w := httptest.NewRecorder()
	h.Invalidate(w, httptest.NewRequest(http.MethodPost, "/api/v1/scene/invalidations", body))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, svc.Cache().Len())

	w = httptest.NewRecorder()
	h.Invalidate(w, httptest.NewRequest(http.MethodPost, "/api/v1/scene/invalidations",
		strings.NewReader(`{"structure_id":"not-a-uuid"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Code)
}
