package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultPrintTimeout = 30 * time.Second

// BrowserConfig selects the Chrome that prints PDFs.
type BrowserConfig struct {
	// RemoteURL is the DevTools websocket of a running Chrome. Empty
	// launches a local headless one on first use.
	RemoteURL string
	// NoSandbox is needed when Chrome runs as root, e.g. in a container.
	NoSandbox bool
	Timeout   time.Duration
	Page      Page
}

// Browser prints HTML to PDF in a fresh tab per document.
type Browser struct {
	cfg     BrowserConfig
	log     *zap.Logger
	alloc   context.Context
	release context.CancelFunc
}

var headlessFlags = []string{
	"disable-gpu",
	"no-first-run",
	"disable-default-apps",
	"disable-extensions",
	"disable-dev-shm-usage",
	"disable-background-networking",
	"disable-sync",
}

// NewBrowser prepares the allocator; no Chrome runs until the first print.
func NewBrowser(cfg BrowserConfig, log *zap.Logger) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPrintTimeout
	}
	if cfg.Page == (Page{}) {
		cfg.Page = A4()
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &Browser{cfg: cfg, log: log.Named("chrome")}
	if cfg.RemoteURL != "" {
		b.alloc, b.release = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return b
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, name := range headlessFlags {
		opts = append(opts, chromedp.Flag(name, true))
	}
	opts = append(opts, chromedp.Flag("font-render-hinting", "none"))
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	b.alloc, b.release = chromedp.NewExecAllocator(context.Background(), opts...)
	return b
}

// RenderPDF prints content. title names the tab and, when content is a
// fragment rather than a full page, the wrapping document.
func (b *Browser) RenderPDF(ctx context.Context, content []byte, title string) ([]byte, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyDocument
	}
	doc, err := wrapDocument(string(content), title)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	// Tabs hang off the allocator, not ctx, so cancellation is forwarded.
	tab, closeTab := chromedp.NewContext(b.alloc, chromedp.WithLogf(b.log.Sugar().Debugf))
	defer closeTab()
	defer context.AfterFunc(ctx, closeTab)()

	var pdf []byte
	runErr := chromedp.Run(tab, load(doc), printTo(b.cfg.Page, &pdf))

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, printerUnavailable(fmt.Sprintf("no PDF within %s", b.cfg.Timeout), err)
		}
		return nil, err
	}
	if runErr != nil {
		b.log.Error("print failed", zap.String("title", title), zap.Error(runErr))
		return nil, printerUnavailable("print failed", runErr)
	}
	if len(pdf) == 0 {
		return nil, printerUnavailable("empty output", errors.New("chrome returned no bytes"))
	}

	b.log.Info("PDF printed",
		zap.String("title", title),
		zap.Int("bytes", len(pdf)),
		zap.Duration("took", time.Since(began)))
	return pdf, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.release()
	return nil
}

// load replaces the blank page's markup with doc.
func load(doc string) chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
	}
}

func printTo(pg Page, out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := pg.printParams().Do(ctx)
		*out = data
		return err
	})
}

var shell = template.Must(template.New("shell").Parse(
	`<!DOCTYPE html><html><head><meta charset="UTF-8">` +
		`{{with .Title}}<title>{{.}}</title>{{end}}</head><body>{{.Body}}</body></html>`))

// wrapDocument leaves full pages alone and puts fragments in a UTF-8 shell.
func wrapDocument(content, title string) (string, error) {
	head := strings.ToLower(content[:min(len(content), 512)])
	if strings.Contains(head, "<!doctype") || strings.Contains(head, "<html") {
		return content, nil
	}
	var buf strings.Builder
	err := shell.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(content)})
	if err != nil {
		return "", fmt.Errorf("wrap document: %w", err)
	}
	return buf.String(), nil
}
