package session

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Anchor identifies a terminal by the host, the parent process (normally
// the interactive shell) and the controlling terminal device.
type Anchor struct {
	Host      string
	ParentPID int
	TTY       string
}

// SessionID returns anchor--{hash16}.
func (a *Anchor) SessionID() string {
	return formatHashedID(NamespaceAnchor, fmt.Sprintf("%s:%d:%s", a.Host, a.ParentPID, a.TTY))
}

var errNoTerminal = errors.New("stdin is not a terminal")

// resolveAnchor builds an Anchor for the current process. It fails when
// stdin is not a terminal, since a pipeline's parent says nothing stable
// about which terminal the user is in.
func resolveAnchor() (*Anchor, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errNoTerminal
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}
	return &Anchor{
		Host:      host,
		ParentPID: os.Getppid(),
		TTY:       ttyName(),
	}, nil
}

// ttyName returns the controlling terminal's device path where the
// platform exposes it, otherwise "".
func ttyName() string {
	for _, p := range []string{"/proc/self/fd/0", "/dev/fd/0"} {
		if dest, err := os.Readlink(p); err == nil {
			return dest
		}
	}
	return ""
}
