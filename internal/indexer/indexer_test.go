package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentlens/agentlens/internal/parser"
	"github.com/agentlens/agentlens/internal/session"
)

func claudeDef(t *testing.T) parser.AgentDef {
	t.Helper()
	def, ok := parser.AgentBySource(session.SourceClaude)
	require.True(t, ok)
	return def
}

func writeClaudeSession(t *testing.T, root, name string, turns int) string {
	t.Helper()
	dir := filepath.Join(root, "-home-u-proj")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".jsonl")

	var content string
	for i := 0; i < turns; i++ {
		ts := time.Date(2024, 6, 10, 9, i, 0, 0, time.UTC).
			Format(time.RFC3339)
		content += `{"type":"user","timestamp":"` + ts +
			`","message":{"content":"turn"}}` + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexer_Refresh(t *testing.T) {
	root := t.TempDir()
	writeClaudeSession(t, root, "s1", 3)
	writeClaudeSession(t, root, "s2", 2)

	ix := New(claudeDef(t), []string{root})
	assert.Equal(t, PhaseInitializing, ix.Phase())

	ix.Refresh()
	assert.Equal(t, PhaseReady, ix.Phase())

	sessions := ix.Sessions()
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.True(t, s.IsLightweight())
	}
	assert.Equal(t, 2, ix.LightweightCount())
}

func TestIndexer_RefreshDelta(t *testing.T) {
	root := t.TempDir()
	path := writeClaudeSession(t, root, "s1", 2)

	ix := New(claudeDef(t), []string{root})
	ix.Refresh()
	before := ix.Sessions()
	require.Len(t, before, 1)

	t.Run("unchanged file keeps its session", func(t *testing.T) {
		ix.Refresh()
		after := ix.Sessions()
		require.Len(t, after, 1)
		assert.Same(t, before[0], after[0])
	})

	t.Run("grown file is rescanned", func(t *testing.T) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString(
			`{"type":"user","timestamp":"2024-06-10T09:30:00Z",` +
				`"message":{"content":"more"}}` + "\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		ix.Refresh()
		after := ix.Sessions()
		require.Len(t, after, 1)
		assert.NotSame(t, before[0], after[0])
		assert.Equal(t, 3, after[0].EventCount)
	})

	t.Run("deleted file drops its session", func(t *testing.T) {
		require.NoError(t, os.Remove(path))
		ix.Refresh()
		assert.Empty(t, ix.Sessions())
	})
}

func TestIndexer_ParseAllFull(t *testing.T) {
	root := t.TempDir()
	writeClaudeSession(t, root, "s1", 3)
	writeClaudeSession(t, root, "s2", 2)

	ix := New(claudeDef(t), []string{root})
	ix.Refresh()
	require.Equal(t, 2, ix.LightweightCount())

	var calls [][2]int
	err := ix.ParseAllFull(
		context.Background(),
		func(done, total int) {
			calls = append(calls, [2]int{done, total})
		})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
	assert.Equal(t, 0, ix.LightweightCount())
	for _, s := range ix.Sessions() {
		assert.False(t, s.IsLightweight())
	}

	t.Run("second run is a no-op", func(t *testing.T) {
		var calls [][2]int
		err := ix.ParseAllFull(
			context.Background(),
			func(done, total int) {
				calls = append(calls, [2]int{done, total})
			})
		require.NoError(t, err)
		assert.Equal(t, [][2]int{{0, 0}}, calls)
	})

	t.Run("full parse survives a refresh", func(t *testing.T) {
		ix.Refresh()
		for _, s := range ix.Sessions() {
			assert.False(t, s.IsLightweight())
		}
	})
}

func TestIndexer_ParseAllFull_Canceled(t *testing.T) {
	root := t.TempDir()
	writeClaudeSession(t, root, "s1", 2)

	ix := New(claudeDef(t), []string{root})
	ix.Refresh()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ix.ParseAllFull(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ix.LightweightCount())
}

func TestIndexer_PhaseSubscription(t *testing.T) {
	root := t.TempDir()
	ix := New(claudeDef(t), []string{root})

	var phases []Phase
	ix.SubscribePhase(func(p Phase) { phases = append(phases, p) })

	ix.Refresh()
	assert.Equal(t, []Phase{PhaseScanning, PhaseReady}, phases)
}
