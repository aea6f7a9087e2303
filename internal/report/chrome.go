package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
	marginInches   = 0.4
)

// ChromeRenderer prints HTML through a remote headless Chrome reached over
// the DevTools websocket.
type ChromeRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
}

func NewChromeRenderer(remoteURL string, timeout time.Duration, logger *slog.Logger) (*ChromeRenderer, error) {
	if remoteURL == "" {
		return nil, errors.New("chrome remote url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), remoteURL)
	return &ChromeRenderer{allocCtx: allocCtx, allocCancel: cancel, timeout: timeout, logger: logger}, nil
}

func (r *ChromeRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx)
	defer browserCancel()
	browserCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	started := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithMarginTop(marginInches).
				WithMarginBottom(marginInches).
				WithMarginLeft(marginInches).
				WithMarginRight(marginInches).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(browserCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("pdf render timed out after %s: %w", r.timeout, err)
		}
		return nil, fmt.Errorf("pdf render: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("pdf render produced no output")
	}
	r.logger.Debug("pdf rendered", "bytes", len(pdf), "duration", time.Since(started))
	return pdf, nil
}

func (r *ChromeRenderer) Close() {
	r.allocCancel()
}
