package output

import (
	"context"
	"time"
)

// Link is one anchor extracted from the current page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Screenshot is a rendered capture of the current page.
type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// BrowserPort is the contract over the browser automation primitives.
// Implementations establish the underlying session lazily; Ensure makes
// establishment explicit so the dispatcher can surface failures as tool
// errors instead of crashes.
type BrowserPort interface {
	Ensure(ctx context.Context) error

	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	PageHTML(ctx context.Context) (string, error)
	Links(ctx context.Context, filter string) ([]Link, error)
	CaptureScreenshot(ctx context.Context, fullPage bool) (*Screenshot, error)

	CurrentURL() string
	Close() error
}
