package storage

import (
	"sort"
	"time"
)

// CurrentSchemaVersion is written into every persisted session document.
const CurrentSchemaVersion = "1.0.0"

// Session is the persisted document for one session. It is what the fs
// backend serializes to {id}.session.json.
type Session struct {
	Version   string            `json:"version"`    // Schema version, for forward compatibility.
	SessionID string            `json:"session_id"` // Owning session identifier.
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Items     map[string]string `json:"items"`
}

func newSession(sessionID string) *Session {
	now := time.Now()
	return &Session{
		Version:   CurrentSchemaVersion,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make(map[string]string),
	}
}

// clone returns a deep copy so callers can mutate without touching shared state.
func (s *Session) clone() *Session {
	c := *s
	c.Items = make(map[string]string, len(s.Items))
	for k, v := range s.Items {
		c.Items[k] = v
	}
	return &c
}

func sortedKeys(items map[string]string) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
