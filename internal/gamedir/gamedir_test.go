package gamedir

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/coreparker/internal/diag"
)

func TestDir(t *testing.T) {
	log := diag.Discard()
	exe := filepath.Join("games", "poe2", "PathOfExile.exe")
	assert.Equal(t, filepath.Join("games", "poe2"), Dir(exe, "/fallback", log))
	assert.Equal(t, "/fallback", Dir("", "/fallback", log))
}

func TestSelectLog_FirstExisting(t *testing.T) {
	game := t.TempDir()
	logs := filepath.Join(game, "logs")
	require.NoError(t, os.MkdirAll(logs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logs, "KakaoClient.txt"), nil, 0o644))

	p, err := SelectLog(game, "logs", []string{"client.txt", "KakaoClient.txt"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logs, "KakaoClient.txt"), p)
}

func TestSelectLog_None(t *testing.T) {
	_, err := SelectLog(t.TempDir(), "logs", []string{"client.txt"})
	assert.ErrorIs(t, err, ErrNoLogFile)
}

func TestWaitForLog_Created(t *testing.T) {
	game := t.TempDir()
	logs := filepath.Join(game, "logs")
	require.NoError(t, os.MkdirAll(logs, 0o755))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(logs, "client.txt"), []byte("x\n"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := WaitForLog(ctx, game, "logs", []string{"client.txt"}, diag.Discard())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logs, "client.txt"), p)
}

func TestWaitForLog_Cancelled(t *testing.T) {
	game := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(game, "logs"), 0o755))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := WaitForLog(ctx, game, "logs", []string{"client.txt"}, diag.Discard())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForLog_LogDirCreatedLater(t *testing.T) {
	game := t.TempDir()
	logs := filepath.Join(game, "logs")

	go func() {
		time.Sleep(50 * time.Millisecond)
		if err := os.MkdirAll(logs, 0o755); err != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(logs, "client.txt"), []byte("x\n"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := WaitForLog(ctx, game, "logs", []string{"client.txt"}, diag.Discard())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logs, "client.txt"), p)
}

func TestWaitForLog_GameDirCreatedLater(t *testing.T) {
	game := filepath.Join(t.TempDir(), "poe2")
	logs := filepath.Join(game, "logs")

	go func() {
		time.Sleep(50 * time.Millisecond)
		if err := os.MkdirAll(logs, 0o755); err != nil {
			return
		}
		_ = os.WriteFile(filepath.Join(logs, "KakaoClient.txt"), []byte("x\n"), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := WaitForLog(ctx, game, "logs", []string{"client.txt", "KakaoClient.txt"}, diag.Discard())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logs, "KakaoClient.txt"), p)
}

func TestWaitForLog_MissingDirOnlyEndsOnCancel(t *testing.T) {
	game := filepath.Join(t.TempDir(), "absent")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := WaitForLog(ctx, game, "logs", []string{"client.txt"}, diag.Discard())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNearestDir(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, root, nearestDir(filepath.Join(root, "a", "b", "c")))
	assert.Equal(t, root, nearestDir(root))
}
