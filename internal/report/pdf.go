package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PDFRenderer turns a Markdown report into a PDF document.
type PDFRenderer interface {
	Render(ctx context.Context, markdown string) ([]byte, error)
}

const defaultStyleCSS = `body{font-family:Helvetica,Arial,sans-serif;color:#1c1917;font-size:11pt;line-height:1.4;}
h1{font-size:22pt;margin-bottom:0.4rem;} h2{font-size:15pt;border-bottom:1px solid #d6d3d1;padding-bottom:0.2rem;margin-top:1.4rem;}
h3{font-size:12pt;} blockquote{margin:0.4rem 0;padding:0.3rem 0.8rem;border-left:3px solid #1d4ed8;background:#f8fafc;color:#334155;}`

var reSectionHeading = regexp.MustCompile(`(?i)<h2>\s*([^<]*Assessment)\s*</h2>`)

type ChromiumPDFRenderer struct {
	webDir     string
	chromePath string
	timeout    time.Duration
	styleOnce  sync.Once
	styleCSS   string
	styleErr   error
}

func NewChromiumPDFRenderer(webDir string) *ChromiumPDFRenderer {
	return &ChromiumPDFRenderer{
		webDir:     webDir,
		chromePath: detectChromePath(),
		timeout:    30 * time.Second,
	}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	htmlDoc, err := r.buildHTML(markdown)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Venture Assessment Report | Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

func (r *ChromiumPDFRenderer) buildHTML(markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	styleCSS, err := r.loadStyleCSS()
	if err != nil {
		return "", err
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Venture Assessment Report</title>" +
		"<style>" + styleCSS + "\n" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"body{background:#fff !important;padding:0.6rem;} .report{max-width:1000px;margin:0 auto;} " +
		".report table{width:100%;border-collapse:collapse;border:1px solid #a8a29e;font-size:0.8rem;} " +
		".report th,.report td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} " +
		".report thead th{background:#f1f5f9;font-weight:700;} " +
		`h2[data-page-break-before="true"]{break-before:page;page-break-before:always;} ` +
		"@media print{ @page{size:auto;margin:12mm;} body{padding:0;} .report{max-width:none;} }" +
		"</style></head><body><div class='report'>" + applyPrintLayoutHooks(content.String()) + "</div></body></html>", nil
}

// applyPrintLayoutHooks starts every domain section on a new page.
func applyPrintLayoutHooks(contentHTML string) string {
	return reSectionHeading.ReplaceAllString(contentHTML, `<h2 data-page-break-before="true">$1</h2>`)
}

// loadStyleCSS reads style.css from the web directory, falling back to the
// built-in stylesheet when the file does not exist.
func (r *ChromiumPDFRenderer) loadStyleCSS() (string, error) {
	r.styleOnce.Do(func() {
		if r.webDir == "" {
			r.styleCSS = defaultStyleCSS
			return
		}
		b, err := os.ReadFile(filepath.Join(r.webDir, "style.css"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.styleCSS = defaultStyleCSS
		case err != nil:
			r.styleErr = fmt.Errorf("read style.css: %w", err)
		default:
			r.styleCSS = string(b)
		}
	})
	return r.styleCSS, r.styleErr
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
