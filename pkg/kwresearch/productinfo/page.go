package productinfo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes       = 4 << 20
	maxDescriptionRune = 4000
)

// PageResolver downloads the product page and extracts the title, the
// feature bullets and a readable description.
type PageResolver struct {
	HTTPClient *http.Client
	UserAgent  string
}

// PageOption configures a PageResolver.
type PageOption func(*PageResolver)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) PageOption {
	return func(r *PageResolver) { r.HTTPClient = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) PageOption {
	return func(r *PageResolver) { r.UserAgent = ua }
}

// NewPageResolver creates a resolver with a 30s HTTP timeout unless
// overridden.
func NewPageResolver(opts ...PageOption) *PageResolver {
	r := &PageResolver{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PageResolver) Resolve(ctx context.Context, asinOrURL, marketplace string) (Product, error) {
	pageURL, err := ProductURL(asinOrURL, marketplace)
	if err != nil {
		return Product{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Product{}, err
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("fetch %s: %v: %w", pageURL, err, internalerr.ErrProductUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("fetch %s: status %d: %w", pageURL, resp.StatusCode, internalerr.ErrProductUnavailable)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Product{}, fmt.Errorf("read %s: %v: %w", pageURL, err, internalerr.ErrProductUnavailable)
	}

	p, err := parsePage(body, pageURL)
	if err != nil {
		return Product{}, err
	}
	p.ASIN = ASIN(pageURL)
	p.Marketplace = marketplace
	if p.Empty() {
		return Product{}, fmt.Errorf("no listing content at %s: %w", pageURL, internalerr.ErrProductUnavailable)
	}
	return p, nil
}

func parsePage(body []byte, pageURL string) (Product, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Product{}, fmt.Errorf("parse page: %v: %w", err, internalerr.ErrProductUnavailable)
	}
	p := Product{URL: pageURL}

	if n := findByID(doc, "productTitle"); n != nil {
		p.Title = collapse(textOf(n))
	}
	if p.Title == "" {
		if n := findTag(doc, "title"); n != nil {
			p.Title = collapse(textOf(n))
		}
	}
	if n := findByID(doc, "feature-bullets"); n != nil {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && n.Data == "li" {
				if t := collapse(textOf(n)); t != "" {
					p.Bullets = append(p.Bullets, t)
				}
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(n)
	}

	parsed, err := url.Parse(pageURL)
	if err == nil {
		if article, rerr := readability.FromReader(bytes.NewReader(body), parsed); rerr == nil {
			p.Description = truncateRunes(collapse(article.TextContent), maxDescriptionRune)
		}
	}
	return p, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
