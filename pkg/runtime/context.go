package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/mod/semver"

	"github.com/ormasoftchile/envrun/pkg/providers"
)

const (
	// DefaultCheckTimeout bounds the self-version check.
	DefaultCheckTimeout = 1500 * time.Millisecond
	// DefaultProbeTimeout bounds the container engine check.
	DefaultProbeTimeout = 10 * time.Second
)

// RuntimeContext owns the probes that run at most once per process: the
// container engine reachability check and the self-version check. It is
// safe for concurrent use and is normally shared by every Engine of a
// process.
type RuntimeContext struct {
	Engine *providers.ContainerEngine

	containerProbe func(ctx context.Context) error
	versionProbe   func(ctx context.Context) (string, error)
	timeout        time.Duration
	probeTimeout   time.Duration

	containerOnce sync.Once
	containerErr  error

	versionOnce sync.Once
	latest      string
	versionErr  error
}

// ContextOption configures a RuntimeContext.
type ContextOption func(*RuntimeContext)

// WithContainerProbe replaces the engine availability check.
func WithContainerProbe(probe func(ctx context.Context) error) ContextOption {
	return func(rc *RuntimeContext) { rc.containerProbe = probe }
}

// WithVersionProbe replaces the latest-version lookup.
func WithVersionProbe(probe func(ctx context.Context) (string, error)) ContextOption {
	return func(rc *RuntimeContext) { rc.versionProbe = probe }
}

// WithVersionURL looks the latest release up at url. The body is either a
// bare version string or a JSON object with a "version" field.
func WithVersionURL(url string) ContextOption {
	return func(rc *RuntimeContext) {
		if url == "" {
			return
		}
		rc.versionProbe = func(ctx context.Context) (string, error) {
			return fetchLatestVersion(ctx, url, rc.timeout)
		}
	}
}

// WithCheckTimeout sets the timeout of the version check.
func WithCheckTimeout(d time.Duration) ContextOption {
	return func(rc *RuntimeContext) {
		if d > 0 {
			rc.timeout = d
		}
	}
}

// NewRuntimeContext creates a context probing engine.
func NewRuntimeContext(engine *providers.ContainerEngine, opts ...ContextOption) *RuntimeContext {
	rc := &RuntimeContext{Engine: engine, timeout: DefaultCheckTimeout, probeTimeout: DefaultProbeTimeout}
	rc.containerProbe = engine.Available
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// ContainerReachable probes the container engine once and returns the
// cached result afterwards. The probe is detached from ctx's cancellation so
// one caller giving up never poisons the cached result for the others; a
// caller whose ctx is already done gets ctx.Err() and nothing is cached.
func (rc *RuntimeContext) ContainerReachable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rc.containerOnce.Do(func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.probeTimeout)
		defer cancel()
		rc.containerErr = rc.containerProbe(pctx)
	})
	return rc.containerErr
}

// CheckVersion compares current with the latest published version. It is
// best-effort: failures are logged at debug level and a newer version is
// logged as a warning. The lookup runs at most once.
func (rc *RuntimeContext) CheckVersion(ctx context.Context, current string, logger *log.Logger) (latest string, newer bool) {
	if rc.versionProbe == nil {
		return "", false
	}
	rc.versionOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		defer cancel()
		rc.latest, rc.versionErr = rc.versionProbe(ctx)
	})
	if rc.versionErr != nil {
		logger.Debug("version check failed", "err", rc.versionErr)
		return "", false
	}
	latest, cur := canonical(rc.latest), canonical(current)
	if !semver.IsValid(latest) || !semver.IsValid(cur) {
		logger.Debug("version check skipped", "current", current, "latest", rc.latest)
		return rc.latest, false
	}
	if semver.Compare(latest, cur) > 0 {
		logger.Warn("a newer envrun is available", "current", cur, "latest", latest)
		return latest, true
	}
	return latest, false
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

func fetchLatestVersion(ctx context.Context, url string, timeout time.Duration) (string, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient.Timeout = timeout

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	var payload struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Version != "" {
		return payload.Version, nil
	}
	return strings.TrimSpace(string(body)), nil
}
