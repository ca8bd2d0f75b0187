package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/envrun/pkg/providers"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestContainerReachableMemoized(t *testing.T) {
	calls := 0
	rc := NewRuntimeContext(&providers.ContainerEngine{}, WithContainerProbe(func(context.Context) error {
		calls++
		return errors.New("down")
	}))
	for range 3 {
		require.Error(t, rc.ContainerReachable(context.Background()))
	}
	assert.Equal(t, 1, calls)
}

// TestContainerReachableCancelledCaller checks a caller whose context is
// already cancelled does not fix the cached result for later callers.
func TestContainerReachableCancelledCaller(t *testing.T) {
	calls := 0
	rc := NewRuntimeContext(&providers.ContainerEngine{}, WithContainerProbe(func(ctx context.Context) error {
		calls++
		return ctx.Err()
	}))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, rc.ContainerReachable(cancelled), context.Canceled)
	assert.Equal(t, 0, calls)

	require.NoError(t, rc.ContainerReachable(context.Background()))
	require.NoError(t, rc.ContainerReachable(context.Background()))
	assert.Equal(t, 1, calls)
}

// TestContainerReachableDetachedProbe checks the probe keeps running when
// the caller gives up midway.
func TestContainerReachableDetachedProbe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRuntimeContext(&providers.ContainerEngine{}, WithContainerProbe(func(pctx context.Context) error {
		cancel()
		_, hasDeadline := pctx.Deadline()
		if !hasDeadline {
			return errors.New("probe has no timeout")
		}
		return pctx.Err()
	}))

	require.NoError(t, rc.ContainerReachable(ctx))
	require.NoError(t, rc.ContainerReachable(context.Background()))
}

func TestCheckVersion(t *testing.T) {
	cases := []struct {
		body    string
		current string
		newer   bool
	}{
		{"v1.3.0\n", "1.2.0", true},
		{`{"version":"1.1.0"}`, "v1.2.0", false},
		{"1.2.0", "1.2.0", false},
		{"garbage", "1.2.0", false},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, c.body)
		}))
		rc := NewRuntimeContext(&providers.ContainerEngine{}, WithVersionURL(srv.URL))
		_, newer := rc.CheckVersion(context.Background(), c.current, quietLogger())
		assert.Equal(t, c.newer, newer, "body %q current %s", c.body, c.current)
		srv.Close()
	}
}

func TestCheckVersionBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	rc := NewRuntimeContext(&providers.ContainerEngine{}, WithVersionURL(srv.URL))
	latest, newer := rc.CheckVersion(context.Background(), "1.0.0", quietLogger())
	assert.Empty(t, latest)
	assert.False(t, newer)
}

func TestCheckVersionTimeout(t *testing.T) {
	rc := NewRuntimeContext(&providers.ContainerEngine{},
		WithCheckTimeout(20*time.Millisecond),
		WithVersionProbe(func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
	start := time.Now()
	_, newer := rc.CheckVersion(context.Background(), "1.0.0", quietLogger())
	assert.False(t, newer, "timed out check reported a newer version")
	assert.Less(t, time.Since(start), 2*time.Second, "check did not honor its timeout")
}

func TestCheckVersionRunsOnce(t *testing.T) {
	calls := 0
	rc := NewRuntimeContext(&providers.ContainerEngine{}, WithVersionProbe(func(context.Context) (string, error) {
		calls++
		return "v2.0.0", nil
	}))
	for range 2 {
		_, newer := rc.CheckVersion(context.Background(), "1.0.0", quietLogger())
		assert.True(t, newer)
	}
	assert.Equal(t, 1, calls)
}
