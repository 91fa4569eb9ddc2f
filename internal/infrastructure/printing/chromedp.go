package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pos/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	pdfExt               = ".pdf"

	// A4 portrait with 10mm margins
	a4WidthMM  = 210.0
	a4HeightMM = 297.0
	marginMM   = 10.0
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// Timeout for a single receipt
	Timeout time.Duration
	// RemoteURL is the DevTools endpoint of a running Chrome (optional).
	// If empty, chromedp launches a local headless browser.
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRenderer prints the HTML receipt to PDF through the Chrome
// DevTools Protocol
type ChromedpRenderer struct {
	html        *HTMLRenderer
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a PDF renderer on top of html
func NewChromedpRenderer(html *HTMLRenderer, config ChromedpConfig) *ChromedpRenderer {
	if html == nil {
		html = NewHTMLRenderer()
	}
	if config.Timeout == 0 {
		config.Timeout = defaultChromeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{
		html:   html,
		config: config,
		logger: logger,
	}
	r.initAllocator()
	return r
}

func (r *ChromedpRenderer) initAllocator() {
	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Render converts the invoice's HTML receipt to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, inv *ledger.Invoice) (*Document, error) {
	htmlDoc, err := r.html.Render(ctx, inv)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	params := defaultPrintParams()
	content := string(htmlDoc.Content)

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, content).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.action().Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", r.config.Timeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.String("invoice", inv.Number), zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	renderDuration := time.Since(startTime)
	r.logger.Debug("receipt PDF rendered",
		zap.String("invoice", inv.Number),
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", renderDuration))

	return &Document{
		Content:        pdfData,
		Ext:            pdfExt,
		RenderDuration: renderDuration,
	}, nil
}

// Close releases the browser allocator
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

// printParams holds the page setup for PDF printing, in inches
type printParams struct {
	paperWidth      float64
	paperHeight     float64
	margin          float64
	printBackground bool
}

func defaultPrintParams() printParams {
	return printParams{
		paperWidth:      mmToInches(a4WidthMM),
		paperHeight:     mmToInches(a4HeightMM),
		margin:          mmToInches(marginMM),
		printBackground: true,
	}
}

func (p printParams) action() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(p.printBackground).
		WithPaperWidth(p.paperWidth).
		WithPaperHeight(p.paperHeight).
		WithMarginTop(p.margin).
		WithMarginRight(p.margin).
		WithMarginBottom(p.margin).
		WithMarginLeft(p.margin).
		WithPreferCSSPageSize(false)
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ ReceiptRenderer = (*ChromedpRenderer)(nil)
