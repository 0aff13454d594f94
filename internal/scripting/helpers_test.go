package scripting

import (
	"testing"

	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/stretchr/testify/require"
)

// newTestStore configures the singleton with a memory slot and a private
// host, so tests do not touch attributes.TrueTest.
func newTestStore(t *testing.T) (*attributes.Store, *attributes.Host) {
	t.Helper()
	attributes.ResetForTests()
	t.Cleanup(attributes.ResetForTests)
	host := attributes.NewHost()
	require.NoError(t, attributes.Configure(attributes.NewMemorySlot(), attributes.WithHost(host)))
	return attributes.Instance(), host
}
