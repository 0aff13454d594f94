package command

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/config"
	"github.com/joeycumines/truetest/internal/session"
)

type harness struct {
	t          *testing.T
	cfg        *config.Config
	dir        string
	configPath string
	stdin      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, env := range []string{session.EnvSessionID, config.EnvLogFile, config.EnvLogLevel} {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyStorageDir, filepath.Join(dir, "sessions"))
	cfg.Sessions.AutoCleanupEnabled = false
	t.Cleanup(attributes.ResetForTests)
	return &harness{t: t, cfg: cfg, dir: dir, configPath: filepath.Join(dir, "config"), stdin: &bytes.Buffer{}}
}

func (h *harness) registry() *Registry {
	r := NewRegistry()
	r.Register(NewHelpCommand(r))
	r.Register(NewVersionCommand("test"))
	r.Register(NewConfigCommand(h.cfg, h.configPath))
	r.Register(NewGetCommand(h.cfg))
	r.Register(NewSetCommand(h.cfg))
	r.Register(NewRemoveCommand(h.cfg))
	r.Register(NewClearCommand(h.cfg))
	r.Register(NewListCommand(h.cfg))
	r.Register(NewSeedCommand(h.cfg))
	imp := NewImportCommand(h.cfg)
	imp.stdin = h.stdin
	r.Register(imp)
	r.Register(NewExportCommand(h.cfg))
	r.Register(NewRunCommand(context.Background(), h.cfg))
	sess := NewSessionCommand(h.cfg)
	sess.stdin = h.stdin
	r.Register(sess)
	return r
}

// run executes one command the way main does, with fresh command state,
// and resets the process-wide store afterwards.
func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	defer attributes.ResetForTests()
	cmd, err := h.registry().Get(args[0])
	require.NoError(h.t, err)
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var out, errOut bytes.Buffer
	fs.SetOutput(&errOut)
	cmd.SetupFlags(fs)
	require.NoError(h.t, fs.Parse(args[1:]))
	err = cmd.Execute(fs.Args(), &out, &errOut)
	return out.String(), errOut.String(), err
}

// mustRun is run that fails the test on error.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run(args...)
	require.NoError(h.t, err, "stderr: %s", errOut)
	return out
}

func (h *harness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
