// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/internal/config"
)

// Session owns one headless browser instance (allocator + tab) and exposes
// the document-state and activation boundaries over it. The live document is
// external and mutates on its own schedule; the session never caches element
// state across calls.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	isClosed bool
}

// splitFlag turns a configured browser argument into a chromedp flag pair.
// Bare switches ("disable-gpu") become boolean flags; "key=value" entries
// ("proxy-server=http://...") keep their value. Leading dashes are stripped
// so args copied from a chrome command line work unchanged.
func splitFlag(arg string) (string, interface{}) {
	arg = strings.TrimLeft(arg, "-")
	if name, value, found := strings.Cut(arg, "="); found {
		return name, value
	}
	return arg, true
}

// NewSession creates an unstarted session.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := uuid.New().String()
	return &Session{
		id:     sessionID,
		cfg:    cfg,
		logger: logger.Named("browser").With(zap.String("session_id", sessionID)),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Start launches the browser and connects the CDP target.
func (s *Session) Start(ctx context.Context) error {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !s.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if w, h := s.cfg.Viewport["width"], s.cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range s.cfg.Args {
		name, value := splitFlag(arg)
		opts = append(opts, chromedp.Flag(name, value))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(ctx, opts...)

	ctxOpts := []chromedp.ContextOption{}
	if s.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...interface{}) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}))
	}
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx, ctxOpts...)

	// Force target creation and CDP connection, then pin the viewport so
	// visibility probes see the same layout regardless of window size.
	connectActions := []chromedp.Action{}
	if w, h := s.cfg.Viewport["width"], s.cfg.Viewport["height"]; w > 0 && h > 0 {
		connectActions = append(connectActions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1, false).Do(ctx)
		}))
	}
	if err := chromedp.Run(s.ctx, connectActions...); err != nil {
		s.Close()
		return fmt.Errorf("failed to connect browser target: %w", err)
	}

	s.logger.Info("Browser session started.", zap.Bool("headless", s.cfg.Headless))
	return nil
}

// Navigate loads the URL and waits for the post-load quiet period so the
// first probes see a rendered document.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL.", zap.String("url", url))

	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(ctx, navTimeout)
	defer navCancel()

	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if wait := s.cfg.PostLoadWait; wait > 0 {
		if err := s.runActions(ctx, chromedp.Sleep(wait)); err != nil {
			return fmt.Errorf("post-load wait interrupted: %w", err)
		}
	}
	return nil
}

// Close tears down the tab and the allocator. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return
	}
	s.isClosed = true

	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Info("Browser session closed.")
}

// runActions executes chromedp actions against the session target, bounded
// by the operational context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.isClosed
	sessionCtx := s.ctx
	s.mu.Unlock()
	if closed || sessionCtx == nil {
		return fmt.Errorf("browser session is not running")
	}

	// Honor both the session lifetime and the per-operation deadline.
	opCtx, cancel := context.WithCancel(sessionCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
