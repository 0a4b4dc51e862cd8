package credwatch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/yndnr/mtlsclient-go/pkg/mtls"
	"github.com/yndnr/mtlsclient-go/pkg/resource"
)

// kubeDataDir is the symlink Kubernetes swaps when a mounted secret changes.
const kubeDataDir = "..data"

var (
	// ErrNoLocalFiles is returned when none of the configured locators is a local file.
	ErrNoLocalFiles = errors.New("credwatch: no local credential files to watch")

	// ErrNoClientCertificate is returned by GetClientCertificate in trust-only mode.
	ErrNoClientCertificate = errors.New("credwatch: current client has no client certificate")
)

// BuildFunc produces a fresh client from cfg.
type BuildFunc func(ctx context.Context, cfg mtls.Config) (*mtls.Client, error)

// Watcher rebuilds an mTLS client whenever one of its credential files changes.
type Watcher struct {
	cfg     mtls.Config
	build   BuildFunc
	files   map[string]bool // cleaned absolute paths
	dirs    []string
	current atomic.Pointer[mtls.Client]
	logger  *slog.Logger

	debounce time.Duration
	limiter  *rate.Limiter
	onReload func(*mtls.Client, error)

	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets how long the watcher waits for a burst of file events to
// settle before rebuilding.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithMinInterval sets the minimum time between two rebuilds.
func WithMinInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithOnReload registers a callback invoked after every rebuild attempt.
// client is nil when err is set.
func WithOnReload(fn func(client *mtls.Client, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher builds the initial client and prepares watches for every
// file-scheme locator in cfg. Remote locators are not watched.
func NewWatcher(ctx context.Context, cfg mtls.Config, build BuildFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		cfg:      cfg,
		build:    build,
		files:    make(map[string]bool),
		logger:   slog.Default(),
		debounce: 500 * time.Millisecond,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	seen := make(map[string]bool)
	for _, locator := range []string{cfg.CA, cfg.ClientKey, cfg.ClientCert, cfg.KeyStore} {
		if locator == "" {
			continue
		}
		path, err := resource.FilePath(locator)
		if err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		w.files[path] = true
		if dir := filepath.Dir(path); !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	if len(w.files) == 0 {
		return nil, ErrNoLocalFiles
	}

	client, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("credwatch: initial build: %w", err)
	}
	w.current.Store(client)
	w.limiter.Allow()

	return w, nil
}

// Files returns the watched credential files.
func (w *Watcher) Files() []string {
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	return files
}

// Current returns the most recently built client.
func (w *Watcher) Current() *mtls.Client {
	return w.current.Load()
}

// Start watches the credential directories until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credwatch: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch directories rather than files to survive rename-on-save.
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("credwatch: watch %s: %w", dir, err)
		}
	}

	w.logger.Info("credential watcher started",
		"dirs", w.dirs,
		"mode", string(w.cfg.Mode()),
	)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("credential file changed",
				"file", event.Name,
				"op", event.Op.String(),
			)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			_ = w.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("credential watcher error", "error", err)

		case <-ctx.Done():
			return nil

		case <-w.done:
			return nil
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync(ctx context.Context) {
	go func() {
		if err := w.Start(ctx); err != nil {
			w.logger.Error("credential watcher stopped with error", "error", err)
		}
	}()
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Reload rebuilds the client immediately. On failure the previous client
// stays current and the error is returned.
func (w *Watcher) Reload(ctx context.Context) error {
	client, err := w.build(ctx, w.cfg)
	if w.onReload != nil {
		w.onReload(client, err)
	}
	if err != nil {
		w.logger.Error("credential reload failed, keeping previous client",
			"error", err,
			"kind", mtls.KindOf(err).String(),
		)
		return err
	}

	old := w.current.Swap(client)
	if old != nil {
		old.CloseIdleConnections()
	}
	w.logger.Info("credentials reloaded", "build_id", client.BuildID)
	return nil
}

// GetClientCertificate implements tls.Config.GetClientCertificate using the
// current client's key manager.
func (w *Watcher) GetClientCertificate(info *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	km := w.Current().KeyManager
	if km == nil {
		return nil, ErrNoClientCertificate
	}
	return km.GetClientCertificate(info)
}

// RoundTrip implements http.RoundTripper by delegating to the current client,
// so an *http.Client wrapping the Watcher follows credential rotation.
func (w *Watcher) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := w.Current().HTTP.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return transport.RoundTrip(req)
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if filepath.Base(event.Name) == kubeDataDir {
		return true
	}
	name := event.Name
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	return w.files[filepath.Clean(name)]
}
