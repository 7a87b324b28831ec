package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Dispatch(t *testing.T) {
	var out bytes.Buffer
	r := NewRouter(&out, nil)

	var got CommandContext
	r.RegisterCommand("echo", "print args", CommandFunc(func(_ context.Context, c CommandContext) error {
		got = c
		return nil
	}))

	require.NoError(t, r.Run(context.Background(), []string{"echo", "-x", "1"}))
	assert.Equal(t, "echo", got.Name)
	assert.Equal(t, []string{"-x", "1"}, got.Args)
	assert.Same(t, &out, got.Out)
}

func TestRouter_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	r := NewRouter(&out, nil)
	r.RegisterCommand("analytics", "class risk summary", CommandFunc(func(context.Context, CommandContext) error { return nil }))

	err := r.Run(context.Background(), []string{"analyse"})

	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, out.String(), "analytics")
}

func TestRouter_UsageIsSorted(t *testing.T) {
	var out bytes.Buffer
	r := NewRouter(&out, nil)
	noop := CommandFunc(func(context.Context, CommandContext) error { return nil })
	r.RegisterCommand("predict", "hours needed", noop)
	r.RegisterCommand("analytics", "class risk summary", noop)

	require.NoError(t, r.Run(context.Background(), nil))

	usage := out.String()
	assert.Contains(t, usage, "Usage: smartattd <command> [flags]")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("analytics")), bytes.Index(out.Bytes(), []byte("predict")))
}

func TestRouter_FlagHelpIsNotAnError(t *testing.T) {
	var out bytes.Buffer
	r := NewRouter(&out, nil)
	r.RegisterCommand("predict", "hours needed", CommandFunc(func(_ context.Context, c CommandContext) error {
		fs := c.FlagSet()
		fs.Int("total", 0, "total hours conducted")
		return fs.Parse(c.Args)
	}))

	require.NoError(t, r.Run(context.Background(), []string{"predict", "-h"}))
	assert.Contains(t, out.String(), "total hours conducted")

	err := r.Run(context.Background(), []string{"predict", "-bogus"})
	assert.Error(t, err)
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter(&bytes.Buffer{}, nil)
	r.RegisterCommand("fail", "always fails", CommandFunc(func(context.Context, CommandContext) error { return boom }))

	err := r.Run(context.Background(), []string{"fail"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ExitCode(err))
}
