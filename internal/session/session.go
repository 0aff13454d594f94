// Package session resolves the identifier that scopes session attributes.
// A session is a terminal: a tmux pane, a screen window, an SSH connection
// or a GUI terminal tab. Sessions detected the same way in the same terminal
// resolve to the same id across process restarts.
//
// Every id has the form {namespace}--{payload}, where the namespace names
// the detector that produced it. Ids are filesystem safe and at most
// MaxSessionIDLength characters.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxSessionIDLength bounds the full id, leaving room for file suffixes.
	MaxSessionIDLength = 80

	// NamespaceDelimiter separates namespace and payload.
	NamespaceDelimiter = "--"

	// ShortHashLength is the number of hex characters kept from hashed payloads.
	ShortHashLength = 16

	// EnvSessionID overrides detection when set.
	EnvSessionID = "TRUETEST_SESSION_ID"
)

const (
	NamespaceExplicit = "ex"
	NamespaceTmux     = "tmux"
	NamespaceScreen   = "screen"
	NamespaceSSH      = "ssh"
	NamespaceTerminal = "terminal"
	NamespaceAnchor   = "anchor"
	NamespaceUUID     = "uuid"
)

// Source names the detector that produced an id.
type Source string

const (
	SourceFlag     Source = "explicit-flag"
	SourceEnv      Source = "explicit-env"
	SourceTmux     Source = "tmux"
	SourceScreen   Source = "screen"
	SourceSSH      Source = "ssh-env"
	SourceTerminal Source = "macos-terminal"
	SourceAnchor   Source = "terminal-anchor"
	SourceUUID     Source = "uuid-fallback"
)

// Detector holds the environment probes used during resolution. The zero
// value is not usable; start from NewDetector.
type Detector struct {
	Getenv    func(string) string
	GOOS      string
	TmuxQuery func(ctx context.Context) (string, error)
	Anchor    func() (*Anchor, error)
	NewUUID   func() (string, error)
}

// NewDetector returns a Detector wired to the real process environment.
func NewDetector() *Detector {
	return &Detector{
		Getenv:    os.Getenv,
		GOOS:      runtime.GOOS,
		TmuxQuery: queryTmux,
		Anchor:    resolveAnchor,
		NewUUID: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// GetSessionID resolves the session id for this process.
func GetSessionID(explicit string) (string, Source, error) {
	return NewDetector().Resolve(explicit)
}

// Resolve walks the detection chain: explicit flag, TRUETEST_SESSION_ID,
// tmux, GNU screen, SSH, macOS terminal, terminal anchor, then a random UUID.
func (d *Detector) Resolve(explicit string) (string, Source, error) {
	if explicit != "" {
		return formatExplicitID(explicit), SourceFlag, nil
	}
	if v := d.Getenv(EnvSessionID); v != "" {
		return formatExplicitID(v), SourceEnv, nil
	}

	if d.Getenv("TMUX_PANE") != "" && d.TmuxQuery != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		raw, err := d.TmuxQuery(ctx)
		cancel()
		if err == nil && raw != "" {
			return formatTmuxID(raw), SourceTmux, nil
		}
	}
	if sty := d.Getenv("STY"); sty != "" {
		return formatHashedID(NamespaceScreen, "screen:"+sty), SourceScreen, nil
	}
	if conn := d.Getenv("SSH_CONNECTION"); conn != "" {
		return formatSSHID(conn), SourceSSH, nil
	}
	if d.GOOS == "darwin" {
		if termID := d.Getenv("TERM_SESSION_ID"); termID != "" {
			return formatHashedID(NamespaceTerminal, "terminal:"+termID), SourceTerminal, nil
		}
	}

	if d.Anchor != nil {
		if a, err := d.Anchor(); err == nil && a != nil {
			return a.SessionID(), SourceAnchor, nil
		}
	}

	id, err := d.NewUUID()
	if err != nil {
		return "", "", fmt.Errorf("all session detection methods failed: %w", err)
	}
	return formatSessionID(NamespaceUUID, id), SourceUUID, nil
}

// formatExplicitID keeps a user-supplied namespace if present, otherwise
// files the id under NamespaceExplicit.
func formatExplicitID(id string) string {
	if ns, payload, ok := strings.Cut(id, NamespaceDelimiter); ok && ns != "" {
		return formatSessionID(sanitizePayload(ns), payload)
	}
	return formatSessionID(NamespaceExplicit, id)
}

func formatHashedID(namespace, stable string) string {
	return formatSessionID(namespace, hashString(stable)[:ShortHashLength])
}

// formatSSHID hashes the full SSH_CONNECTION 4-tuple; the client port tells
// concurrent connections from the same host apart.
func formatSSHID(conn string) string {
	if parts := strings.Fields(conn); len(parts) == 4 {
		return formatHashedID(NamespaceSSH, "ssh:"+strings.Join(parts, ":"))
	}
	return formatHashedID(NamespaceSSH, "ssh:"+conn)
}

// maxNamespaceLength leaves room for at least a short hash payload.
const maxNamespaceLength = MaxSessionIDLength - len(NamespaceDelimiter) - ShortHashLength

// formatSessionID builds {namespace}--{payload}. Payloads are sanitized and,
// when too long, truncated with a suffix hashed from the unsanitized value.
// Over-long namespaces are shortened the same way.
func formatSessionID(namespace, payload string) string {
	if len(namespace) > maxNamespaceLength {
		namespace = namespace[:maxNamespaceLength-9] + "_" + hashString(namespace)[:8]
	}
	sum := hashString(payload)
	payload = sanitizePayload(payload)

	maxPayload := MaxSessionIDLength - len(namespace) - len(NamespaceDelimiter)
	if len(payload) > maxPayload {
		keep := maxPayload - 9
		if keep < 8 {
			payload = sum[:maxPayload]
		} else {
			payload = payload[:keep] + "_" + sum[:8]
		}
	}
	return namespace + NamespaceDelimiter + payload
}

var tmuxIDRegex = regexp.MustCompile(`^\$(\w+):@(\w+):%(\w+)$`)

func queryTmux(ctx context.Context) (string, error) {
	tmux, err := exec.LookPath("tmux")
	if err != nil {
		return "", fmt.Errorf("tmux not found in PATH: %w", err)
	}
	out, err := exec.CommandContext(ctx, tmux, "display-message", "-p", "#{session_id}:#{window_id}:#{pane_id}").Output()
	if err != nil {
		return "", fmt.Errorf("tmux display-message: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// formatTmuxID renders "$0:@1:%2" as tmux--s0.w1.p2.
func formatTmuxID(raw string) string {
	if m := tmuxIDRegex.FindStringSubmatch(raw); len(m) == 4 {
		return formatSessionID(NamespaceTmux, fmt.Sprintf("s%s.w%s.p%s", m[1], m[2], m[3]))
	}
	r := strings.NewReplacer("$", "s", "@", "w", "%", "p", ":", ".")
	return formatSessionID(NamespaceTmux, r.Replace(raw))
}

// sanitizePayload replaces everything outside [A-Za-z0-9._-] with '_'.
func sanitizePayload(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
