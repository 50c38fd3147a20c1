package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFleetStats struct{ online int }

func (f fakeFleetStats) CountOnline() int { return f.online }

func TestHealthHandler_GetHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3").WithFleet(fakeFleetStats{online: 3})

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Equal(t, "disabled", out.Body.Database)
	assert.Equal(t, 3, out.Body.OnlineWorkers)
	assert.Greater(t, out.Body.Goroutines, 0)
	assert.NotZero(t, out.Body.Memory.AllocBytes)
}
