package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscene/internal/config"
	"github.com/turtacn/molscene/internal/domain/geometry"
	"github.com/turtacn/molscene/internal/testutil"
)

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve", "--addr", "127.0.0.1:0"})
	assert.NoError(t, cmd.ExecuteContext(ctx))
}

func TestServe_BadAddress(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve", "--addr", "not-an-address"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestReloadRibbon(t *testing.T) {
	rt, err := NewRuntime(nil, nil)
	require.NoError(t, err)
	defer rt.Close()
	logger := testutil.NewMockLogger()
	reload := reloadRibbon(context.Background(), rt.Service, logger)

	next := config.NewDefaultConfig()
	next.Render.RibbonForm = string(geometry.FormSimpleLine)
	reload(next)
	assert.Equal(t, geometry.FormSimpleLine, rt.Service.RibbonConfig().Form)
	assert.Zero(t, logger.Count("warn"))

	bad := config.NewDefaultConfig()
	bad.Render.RibbonForm = "wireframe"
	reload(bad)
	assert.Equal(t, geometry.FormSimpleLine, rt.Service.RibbonConfig().Form)
	entry := logger.Find("warn", "reloaded ribbon configuration rejected")
	require.NotNil(t, entry)
	form, _ := entry.Field("ribbon_form")
	assert.Equal(t, "wireframe", form)
}
