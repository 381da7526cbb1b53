package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"scraper-agent/internal/application/port/output"
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   true,
		SlowMotion: 0,
		Timeout:    10 * time.Second,
		NoSandbox:  true,
		DevTools:   false,
	}
}

// BrowserAdapter implements the browser primitives over go-rod. The
// Chrome process is launched lazily on the first Ensure, so a run that
// never touches the page never pays for a browser.
type BrowserAdapter struct {
	cfg BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	closed   bool
}

func NewBrowserAdapter(cfg BrowserConfig) *BrowserAdapter {
	return &BrowserAdapter{cfg: cfg}
}

// Ensure establishes the browser session if it is not up yet.
func (b *BrowserAdapter) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("browser session already closed")
	}
	if b.page != nil {
		return nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		Devtools(b.cfg.DevTools).
		NoSandbox(b.cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-web-security").
		Set("allow-running-insecure-content").
		Set("disable-setuid-sandbox")

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		SlowMotion(b.cfg.SlowMotion).
		Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return fmt.Errorf("failed to open page: %w", err)
	}

	b.launcher = l
	b.browser = browser
	b.page = page
	return nil
}

func (b *BrowserAdapter) currentPage() (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return nil, fmt.Errorf("browser session not established")
	}
	return b.page, nil
}

func (b *BrowserAdapter) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page, err := b.currentPage()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = b.cfg.Timeout
	}

	p := page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("page load timed out: %w", err)
	}
	page.WaitIdle(5 * time.Second)
	return nil
}

func (b *BrowserAdapter) Click(ctx context.Context, selector string) error {
	page, err := b.currentPage()
	if err != nil {
		return err
	}

	el, err := page.Context(ctx).Timeout(b.cfg.Timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}

	page.WaitIdle(2 * time.Second)
	return nil
}

func (b *BrowserAdapter) Fill(ctx context.Context, selector, value string) error {
	page, err := b.currentPage()
	if err != nil {
		return err
	}

	el, err := page.Context(ctx).Timeout(b.cfg.Timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("field not found: %s: %w", selector, err)
	}

	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) PageHTML(ctx context.Context) (string, error) {
	page, err := b.currentPage()
	if err != nil {
		return "", err
	}

	html, err := page.Context(ctx).Timeout(b.cfg.Timeout).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

func (b *BrowserAdapter) Links(ctx context.Context, filter string) ([]output.Link, error) {
	page, err := b.currentPage()
	if err != nil {
		return nil, err
	}

	elements, err := page.Context(ctx).Timeout(b.cfg.Timeout).Elements("a")
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	filter = strings.ToLower(filter)
	var links []output.Link
	for _, el := range elements {
		text, _ := el.Text()
		text = strings.TrimSpace(text)
		href := ""
		if attr, err := el.Attribute("href"); err == nil && attr != nil {
			href = *attr
		}
		if href == "" {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(text), filter) {
			continue
		}
		links = append(links, output.Link{Text: text, Href: href})
	}
	return links, nil
}

func (b *BrowserAdapter) CaptureScreenshot(ctx context.Context, fullPage bool) (*output.Screenshot, error) {
	page, err := b.currentPage()
	if err != nil {
		return nil, err
	}

	imgBytes, err := page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > 1024 {
		img = imaging.Resize(img, 1024, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &output.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

func (b *BrowserAdapter) CurrentURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.page == nil {
		return ""
	}
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close releases the session and kills the Chrome process. Safe to call
// more than once.
func (b *BrowserAdapter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var closeErr error
	if b.browser != nil {
		closeErr = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.browser = nil
	b.page = nil
	return closeErr
}
