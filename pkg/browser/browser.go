// Package browser drives Chrome through go-rod and adapts its pages to the
// page capability interfaces.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Browser manages browser automation
type Browser struct {
	config   Config
	logger   *zap.Logger
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Option configures a Browser.
type Option func(*Browser)

func WithLogger(l *zap.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// NewBrowser creates a new browser instance
func NewBrowser(cfg Config, opts ...Option) *Browser {
	b := &Browser{config: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Start launches Chrome, or connects to Config.RemoteURL.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return nil
	}

	wsURL := b.config.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Context(ctx).
			Headless(b.config.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if b.config.Bin != "" {
			l = l.Bin(b.config.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		b.launcher = l
		b.logger.Info("launched local chrome", zap.String("url", wsURL), zap.Bool("headless", b.config.Headless))
	} else {
		b.logger.Info("connecting to remote browser", zap.String("url", wsURL))
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = rb
	return nil
}

// Stop closes the browser
func (b *Browser) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	b.cleanup()
	return err
}

func (b *Browser) cleanup() {
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
}

// OpenPage creates a tab, navigates it to url and returns it adapted.
func (b *Browser) OpenPage(ctx context.Context, url string) (*Page, error) {
	b.mu.Lock()
	rb := b.browser
	b.mu.Unlock()
	if rb == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var (
		rp  *rod.Page
		err error
	)
	if b.config.Stealth {
		rp, err = stealth.Page(rb)
	} else {
		rp, err = rb.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	p := newPage(rp, b.logger.Named("page"), b.config.Timeout)
	if url != "" {
		if err := p.Navigate(ctx, url); err != nil {
			_ = rp.Close()
			return nil, err
		}
	}
	return p, nil
}
