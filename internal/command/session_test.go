package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/truetest/internal/storage"
)

func TestSession_ID(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "ex--s1\n", h.mustRun("session", "-session", "s1", "id"))
	assert.Equal(t, "ex--s1\texplicit-flag\n", h.mustRun("session", "-session", "s1", "id", "-source"))
}

func TestSession_List(t *testing.T) {
	h := newHarness(t)
	h.mustRun("set", "-session", "one", "k", "v")
	h.mustRun("set", "-session", "two", "k", "v")

	var infos []storage.SessionInfo
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("session", "list", "-format", "json")), &infos))
	require.Len(t, infos, 2)
	ids := []string{infos[0].ID, infos[1].ID}
	assert.ElementsMatch(t, []string{"ex--one", "ex--two"}, ids)

	out := h.mustRun("session", "-session", "two")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, out, "current")
	assert.Contains(t, out, "idle")

	_, _, err := h.run("session", "list", "-format", "xml")
	assert.Error(t, err)
}

func TestSession_Purge(t *testing.T) {
	h := newHarness(t)
	h.mustRun("set", "-session", "keep", "k", "v")
	h.mustRun("set", "-session", "drop", "k", "v")

	out := h.mustRun("session", "-session", "keep", "purge", "-dry-run")
	assert.Contains(t, out, "would remove ex--drop")

	h.stdin.WriteString("n\n")
	out = h.mustRun("session", "-session", "keep", "purge")
	assert.Contains(t, out, "aborted")

	h.stdin.WriteString("yes\n")
	out = h.mustRun("session", "-session", "keep", "purge")
	assert.Contains(t, out, "removed ex--drop")
	assert.NotContains(t, out, "ex--keep")

	infos, err := storage.ScanSessions(h.cfg.Global["storage.dir"])
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "ex--keep", infos[0].ID)
}

func TestSession_CleanHonoursPolicy(t *testing.T) {
	h := newHarness(t)
	h.cfg.Sessions.MaxCount = 1
	h.cfg.Sessions.MaxAgeDays = 0
	h.cfg.Sessions.MaxSizeMB = 0
	for _, id := range []string{"a", "b", "c"} {
		h.mustRun("set", "-session", id, "k", "v")
	}
	out := h.mustRun("session", "-session", "zzz", "clean", "-y")
	assert.Contains(t, out, "removed 2 session(s)")
}

func TestSession_UnknownSubcommand(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("session", "delete")
	assert.EqualError(t, err, "unknown subcommand: delete")
}
