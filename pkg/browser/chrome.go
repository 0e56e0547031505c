package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

var errStartTimeout = errors.New("browser did not start in time")

// ChromeConfig configures the headless Chrome driver.
type ChromeConfig struct {
	// ExecPath overrides the Chrome binary; empty uses chromedp's lookup.
	ExecPath string
	// WindowWidth and WindowHeight set the fixed viewport.
	WindowWidth  int
	WindowHeight int
	// StartTimeout bounds browser launch.
	StartTimeout time.Duration
}

// DefaultChromeConfig returns the viewport and launch timeout used in production.
func DefaultChromeConfig() ChromeConfig {
	return ChromeConfig{
		WindowWidth:  1280,
		WindowHeight: 1200,
		StartTimeout: 30 * time.Second,
	}
}

// Chrome launches one headless Chrome process per session via chromedp.
type Chrome struct {
	cfg ChromeConfig
}

// NewChrome creates a Chrome driver.
func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		def := DefaultChromeConfig()
		cfg.WindowWidth, cfg.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultChromeConfig().StartTimeout
	}
	return &Chrome{cfg: cfg}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(c.cfg.WindowWidth, c.cfg.WindowHeight),
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

// NewSession launches a browser and opens its first tab. The browser outlives
// ctx cancellation; it is torn down only by Session.Close.
func (c *Chrome) NewSession(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), c.allocatorOptions()...)
	mainCtx, mainCancel := chromedp.NewContext(allocCtx)

	// The first Run binds the browser process and its first tab to the context it
	// receives, so it must run on mainCtx itself rather than a timeout child.
	timer := time.AfterFunc(c.cfg.StartTimeout, mainCancel)
	err := chromedp.Run(mainCtx)
	if !timer.Stop() && err == nil {
		err = errStartTimeout
	}
	if err != nil {
		mainCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	s := &chromeSession{
		allocCancel: allocCancel,
		tabs:        make(map[string]*chromeTab),
	}
	s.current = s.addTab(mainCtx, mainCancel)
	return s, nil
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type chromeSession struct {
	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabs        map[string]*chromeTab
	seq         int
	current     string
	closed      bool
}

func (s *chromeSession) addTab(ctx context.Context, cancel context.CancelFunc) string {
	s.seq++
	handle := "tab-" + strconv.Itoa(s.seq)
	s.tabs[handle] = &chromeTab{ctx: ctx, cancel: cancel}
	return handle
}

func (s *chromeSession) activeTab() (*chromeTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	tab, ok := s.tabs[s.current]
	if !ok {
		return nil, ErrNoActiveContext
	}
	return tab, nil
}

// run executes actions on the active tab, bounded by ctx's deadline and
// cancellation. chromedp needs the tab context as parent, so ctx only
// contributes its lifetime.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	tab, err := s.activeTab()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(tab.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, rawURL string) error {
	return s.run(ctx, chromedp.Navigate(rawURL))
}

func (s *chromeSession) Texts(ctx context.Context, selector string) ([]string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.innerText || e.textContent || "")`, sel)

	var texts []string
	err = s.run(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, &texts),
	)
	if err != nil {
		return nil, notFound(err)
	}
	return texts, nil
}

func (s *chromeSession) Attribute(ctx context.Context, selector, name string) (string, error) {
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", notFound(err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) Handle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *chromeSession) OpenContext(ctx context.Context) (string, error) {
	parent, err := s.activeTab()
	if err != nil {
		// A closed active tab still leaves the browser reachable through any other tab.
		parent, err = s.anyTab()
		if err != nil {
			return "", err
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// As with the first tab, the target is bound to the context of its first Run.
	tabCtx, tabCancel := chromedp.NewContext(parent.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return "", fmt.Errorf("open tab: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	handle := s.addTab(tabCtx, tabCancel)
	s.current = handle
	return handle, nil
}

func (s *chromeSession) anyTab() (*chromeTab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	for _, tab := range s.tabs {
		return tab, nil
	}
	return nil, ErrNoActiveContext
}

func (s *chromeSession) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	tab, ok := s.tabs[s.current]
	if !ok {
		s.mu.Unlock()
		return ErrNoActiveContext
	}
	delete(s.tabs, s.current)
	s.current = ""
	s.mu.Unlock()

	err := chromedp.Cancel(tab.ctx)
	tab.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close tab: %w", err)
	}
	return nil
}

func (s *chromeSession) SwitchTo(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.tabs[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, handle)
	}
	s.current = handle
	return nil
}

func (s *chromeSession) Handles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]string, 0, len(s.tabs))
	for h := range s.tabs {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// Close cancels secondary tabs first and the first tab last; cancelling the
// first tab shuts the browser down.
func (s *chromeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tabs := s.tabs
	s.tabs = nil
	s.current = ""
	s.mu.Unlock()

	handles := make([]string, 0, len(tabs))
	for h := range tabs {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return tabOrder(handles[i]) > tabOrder(handles[j]) })

	var errs []error
	for _, h := range handles {
		if err := chromedp.Cancel(tabs[h].ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("close %s: %w", h, err))
		}
		tabs[h].cancel()
	}
	s.allocCancel()
	return errors.Join(errs...)
}

func tabOrder(handle string) int {
	n, _ := strconv.Atoi(handle[len("tab-"):])
	return n
}

func notFound(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
