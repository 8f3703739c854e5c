package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flagkit "github.com/flagkit/go-sdk"
	"github.com/flagkit/go-sdk/internal/config"
)

const flagsJSON = `{
  "myNewFeature": {"enabled": true},
  "railway-demo-flag": {"enabled": false},
  "product_sort": {"enabled": true, "sort_method": "Variation 1 shows popular products first!"}
}`

// syncBuffer is written by the poller goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func writeFlags(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "flags.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestAppConfigCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)

	out, err := runCLI(t, context.Background(), "--source", "file", "--file", path, "appconfig")
	require.NoError(t, err)
	assert.Equal(t, flagOnMessage+"\n", out)

	out, err = runCLI(t, context.Background(), "--source", "file", "--file", path, "appconfig", "--flag", "railway-demo-flag")
	require.NoError(t, err)
	assert.Equal(t, flagOffMessage+"\n", out)

	_, err = runCLI(t, context.Background(), "--source", "file", "--file", path, "appconfig", "--flag", "absent")
	assert.ErrorIs(t, err, flagkit.ErrFlagNotFound)
}

func TestEnvFileSelectsSource(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FLAGKIT_SOURCE=file\nFLAGKIT_FILE_PATH="+path+"\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("FLAGKIT_SOURCE")
		os.Unsetenv("FLAGKIT_FILE_PATH")
	})

	out, err := runCLI(t, context.Background(), "--env-file", envFile, "appconfig")
	require.NoError(t, err)
	assert.Equal(t, flagOnMessage+"\n", out)
}

func TestInvalidConfiguration(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := runCLI(t, context.Background(), "--source", "file", "appconfig")
	assert.ErrorContains(t, err, "file.path is required")
}

func TestDecideCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)

	out, err := runCLI(t, context.Background(), "--source", "file", "--file", path,
		"decide", "--user", "local_user", "--flag", "product_sort", "--attr", "account_label=local_blah")
	require.NoError(t, err)
	assert.Equal(t, flagOnMessage+"\n", out)

	out, err = runCLI(t, context.Background(), "--source", "file", "--file", path, "decide")
	require.NoError(t, err)
	assert.Equal(t, flagOffMessage+"\n", out)

	out, err = runCLI(t, context.Background(), "--source", "file", "--file", path, "decide", "--flag", "absent")
	require.NoError(t, err)
	assert.Equal(t, flagOffMessage+"\n", out)
}

func TestSorterCommand(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)

	out, err := runCLI(t, context.Background(), "--source", "file", "--file", path, "sorter", "--visitors", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome to our product catalog!")
	assert.Equal(t, 10, strings.Count(out, debugTextOn))
	assert.Contains(t, out, "10 out of 10 visitors (~100%) had the feature flag enabled")
	assert.Contains(t, out, "10 visitors (~100%) got the experience: 'Variation 1 shows popular products first!'")

	_, err = runCLI(t, context.Background(), "--source", "file", "--file", path, "sorter", "--visitors", "0")
	assert.Error(t, err)
}

func TestSorterWatchRerunsOnUpdate(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)
	t.Setenv("FLAGKIT_POLL_INTERVAL", "10ms")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--source", "file", "--file", path, "sorter", "--visitors", "4", "--watch"})
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "4 out of 4 visitors")
	}, 5*time.Second, 10*time.Millisecond)

	writeFlags(t, dir, `{"product_sort": {"enabled": false}}`)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "4 visitors (~100%) got the experience: '"+sortFallbackText+"'")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sorter --watch did not stop after cancel")
	}
}

func TestOptionsKeepExplicitZeroSafetyMargin(t *testing.T) {
	cfg := config.DefaultConfig()
	a := &app{cfg: cfg, logger: newLogger(&syncBuffer{}, false)}
	assert.Equal(t, time.Minute, a.options().SafetyMargin)

	cfg.Session.SafetyMargin = 0
	assert.Equal(t, flagkit.NoSafetyMargin, a.options().SafetyMargin)
}

func TestDecideLogsMissingFlagReason(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := writeFlags(t, dir, flagsJSON)

	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--debug", "--source", "file", "--file", path, "decide", "--flag", "absent"})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	require.NoError(t, cmd.Execute())

	assert.Equal(t, flagOffMessage+"\n", stdout.String())
	assert.Contains(t, stderr.String(), "Running script")
	assert.Contains(t, stderr.String(), "name=decide")
	assert.Contains(t, stderr.String(), "flag treated as off")
	assert.Contains(t, stderr.String(), `not found in configuration`)
}
