package config

import (
	"os"
	"path/filepath"
	"testing"
)

func setAndRead(t *testing.T, initial, section, key, value string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "config")
	if initial != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := SetKeyInFile(path, section, key, value); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name, initial, section, key, value, want string
	}{
		{"empty file", "", "", "color", "never", "color never\n"},
		{"replace global", "# c\ncolor auto\nlog.level info\n", "", "color", "never", "# c\ncolor never\nlog.level info\n"},
		{"append global before section", "color auto\n\n[list]\nformat json\n", "", "log.level", "debug", "color auto\nlog.level debug\n\n[list]\nformat json\n"},
		{"global key in section untouched", "[list]\ncolor auto\n", "", "color", "never", "color never\n[list]\ncolor auto\n"},
		{"replace in section", "color auto\n[list]\nformat text\n[export]\nformat env\n", "list", "format", "json", "color auto\n[list]\nformat json\n[export]\nformat env\n"},
		{"add to existing section", "[list]\ncolor auto\n\n[export]\nformat env\n", "list", "format", "json", "[list]\ncolor auto\nformat json\n\n[export]\nformat env\n"},
		{"new section", "color auto\n", "sessions", "maxCount", "5", "color auto\n\n[sessions]\nmaxCount 5\n"},
		{"empty value", "", "", "session.id", "", "session.id\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := setAndRead(t, tc.initial, tc.section, tc.key, tc.value); got != tc.want {
				t.Fatalf("got:\n%q\nwant:\n%q", got, tc.want)
			}
		})
	}
}

func TestSetKeyInFile_RoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")
	if err := SetKeyInFile(path, "", KeyStorageBack, "memory"); err != nil {
		t.Fatal(err)
	}
	if err := SetKeyInFile(path, SessionsSection, "maxCount", "3"); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Global[KeyStorageBack] != "memory" || c.Sessions.MaxCount != 3 {
		t.Fatalf("round trip: %v %+v", c.Global, c.Sessions)
	}
}
