package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/truetest/internal/storage"
)

// SetKeyInFile sets key to value in section ("" for global) of the config
// file at path, preserving every other line. A missing key is added at the
// end of its section; a missing section is appended to the file.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}
	entry := strings.TrimSpace(key + " " + value)

	start, end, ok := sectionBounds(lines, section)
	if !ok {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", entry)
		return writeLines(path, lines)
	}

	for i := start; i < end; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = entry
			return writeLines(path, lines)
		}
	}

	// Keep blank separator lines after the new entry.
	pos := end
	for pos > start && strings.TrimSpace(lines[pos-1]) == "" {
		pos--
	}
	lines = append(lines[:pos], append([]string{entry}, lines[pos:]...)...)
	return writeLines(path, lines)
}

// sectionBounds returns the half-open line range of section's body.
func sectionBounds(lines []string, section string) (start, end int, ok bool) {
	current := ""
	ok = section == ""
	end = len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
			continue
		}
		if ok && current == section {
			return start, i, true
		}
		current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
		if current == section {
			start, ok = i+1, true
		}
	}
	return start, end, ok
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return storage.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
