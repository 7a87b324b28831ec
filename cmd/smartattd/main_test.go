package main

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithGracePeriod_OutlivesParentUntilGraceEnds(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	var signals atomic.Int32

	ctx, cancel := withGracePeriod(parent, 200*time.Millisecond, func() { signals.Add(1) })
	defer cancel()

	stop()
	require.Eventually(t, func() bool { return signals.Load() == 1 }, time.Second, time.Millisecond)
	assert.NoError(t, ctx.Err())

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after grace period")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithGracePeriod_CancelWithoutSignal(t *testing.T) {
	var signals atomic.Int32

	ctx, cancel := withGracePeriod(context.Background(), time.Hour, func() { signals.Add(1) })
	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Zero(t, signals.Load())
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "missing.env"))

	_, err := loadConfig()
	assert.Error(t, err)
}
