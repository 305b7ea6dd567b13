package research

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vibetex/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcher renders pages in headless Chrome before extracting text, for
// sites that build their content with JavaScript.
type BrowserFetcher struct {
	controlURL string
	timeout    time.Duration

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

// NewBrowserFetcher creates a fetcher. controlURL points at an existing
// DevTools endpoint; empty launches a local headless Chrome on first use.
func NewBrowserFetcher(controlURL string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{controlURL: controlURL, timeout: timeout}
}

func (b *BrowserFetcher) ensureStarted() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		b.launched = l
		controlURL = url
	}

	// The browser outlives any single request, so it is not bound to ctx.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launched != nil {
			b.launched.Kill()
			b.launched = nil
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	logging.Research("Headless browser connected")
	b.browser = browser
	return browser, nil
}

// Fetch navigates a fresh page to url and returns its rendered text.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browser, err := b.ensureStarted()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	p := page.Context(ctx).Timeout(b.timeout)
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for load: %w", err)
	}
	content, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	text, err := HTMLToText(content)
	if err != nil {
		return "", fmt.Errorf("failed to convert page: %w", err)
	}
	logging.ResearchDebug("Browser fetched %s (%d chars text)", url, len(text))
	return text, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launched != nil {
		b.launched.Cleanup()
		b.launched = nil
	}
	return err
}
