//go:build !windows

package storage

import "errors"

func atomicRenameWindows(string, string) error {
	return errors.New("atomicRenameWindows called on non-Windows platform")
}
