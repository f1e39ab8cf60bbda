package sources

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// The per-call context deadline is the only timeout. A client-level timeout
// would silently cap any configured bound above the default at the earlier
// of the two deadlines.
func TestFetcherTimeoutAboveDefaultIsHonored(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := NewFetcher(log, WithTimeout(20*time.Second))
	require.Equal(t, 20*time.Second, f.timeout)
	require.Zero(t, f.client.Timeout)

	f = NewFetcher(log)
	require.Equal(t, DefaultTimeout, f.timeout)
	require.Zero(t, f.client.Timeout)
}
