package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExtractPDF reads a PDF from disk and returns a derived topic (the file
// name without extension) and its plain text.
func ExtractPDF(path string) (string, string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", "", fmt.Errorf("reading pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", "", fmt.Errorf("reading pdf text: %w", err)
	}

	base := filepath.Base(path)
	topic := strings.TrimSuffix(base, filepath.Ext(base))
	return topic, collapseWhitespace(string(raw)), nil
}

const maxFetchBody = 2 << 20

// Fetcher downloads web pages for URL imports.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. timeout <= 0 selects 15s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// ExtractURL fetches a page and returns its title and visible text.
func (f *Fetcher) ExtractURL(ctx context.Context, url string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return "", "", fmt.Errorf("reading body: %w", err)
	}
	title, text := extractHTML(string(body))
	return title, text, nil
}

// skipElements are HTML elements whose text is never user-visible content.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
}

// extractHTML parses HTML and returns the page title and its visible text.
func extractHTML(raw string) (string, string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", collapseWhitespace(raw)
	}

	title := findTitle(doc)
	var b strings.Builder
	extractText(doc, &b)
	return title, collapseWhitespace(b.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(b.String())
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func extractText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skipElements[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, b)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.P || n.DataAtom == atom.Br || n.DataAtom == atom.Li || n.DataAtom == atom.Div) {
		b.WriteString("\n")
	}
}

// collapseWhitespace squeezes runs of whitespace so extracted text stores
// compactly and reads cleanly in prompts.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
