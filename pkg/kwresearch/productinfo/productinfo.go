// Package productinfo resolves an ASIN or product URL into the listing text
// the relevance stage summarizes.
package productinfo

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cognicore/kwresearch/pkg/kwresearch/internalerr"
)

// Product is the listing content of one product page.
type Product struct {
	ASIN        string
	URL         string
	Marketplace string
	Title       string
	Bullets     []string
	Description string
}

// Empty reports whether nothing usable was extracted.
func (p Product) Empty() bool {
	return strings.TrimSpace(p.Title) == "" && len(p.Bullets) == 0 && strings.TrimSpace(p.Description) == ""
}

// Resolver fetches product content for an ASIN or URL.
type Resolver interface {
	Resolve(ctx context.Context, asinOrURL, marketplace string) (Product, error)
}

var marketplaceDomains = map[string]string{
	"US": "amazon.com",
	"UK": "amazon.co.uk",
	"CA": "amazon.ca",
	"DE": "amazon.de",
	"FR": "amazon.fr",
	"IT": "amazon.it",
	"ES": "amazon.es",
	"JP": "amazon.co.jp",
	"IN": "amazon.in",
	"MX": "amazon.com.mx",
	"BR": "amazon.com.br",
	"AU": "amazon.com.au",
}

var (
	asinPattern    = regexp.MustCompile(`^[A-Z0-9]{10}$`)
	asinInURL      = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)
	nonAlnum       = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// ProductURL builds the product page URL. A value that already is an http
// URL is returned unchanged; unknown marketplaces fall back to US.
func ProductURL(asinOrURL, marketplace string) (string, error) {
	v := strings.TrimSpace(asinOrURL)
	if v == "" {
		return "", fmt.Errorf("empty asin or url: %w", internalerr.ErrInvalidInput)
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		if _, err := url.Parse(v); err != nil {
			return "", fmt.Errorf("parse product url: %w", internalerr.ErrInvalidInput)
		}
		return v, nil
	}
	asin := strings.ToUpper(v)
	if !asinPattern.MatchString(asin) {
		return "", fmt.Errorf("%q is not an ASIN: %w", v, internalerr.ErrInvalidInput)
	}
	domain, ok := marketplaceDomains[strings.ToUpper(strings.TrimSpace(marketplace))]
	if !ok {
		domain = marketplaceDomains["US"]
	}
	return "https://www." + domain + "/dp/" + asin, nil
}

// ASIN extracts the ASIN from an ASIN or product URL; "" when none is found.
func ASIN(asinOrURL string) string {
	v := strings.TrimSpace(asinOrURL)
	if asinPattern.MatchString(strings.ToUpper(v)) {
		return strings.ToUpper(v)
	}
	if m := asinInURL.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return ""
}

// FileToken turns an ASIN or URL into a string safe for file names.
func FileToken(asinOrURL string) string {
	if a := ASIN(asinOrURL); a != "" {
		return a
	}
	t := strings.Trim(nonAlnum.ReplaceAllString(asinOrURL, "_"), "_")
	if len(t) > 40 {
		t = t[:40]
	}
	if t == "" {
		return "product"
	}
	return t
}

// Static resolves every request to a fixed product. It backs offline runs
// and tests.
type Static struct {
	Product Product
	Err     error
}

func (s Static) Resolve(_ context.Context, asinOrURL, marketplace string) (Product, error) {
	if s.Err != nil {
		return Product{}, s.Err
	}
	p := s.Product
	if p.ASIN == "" {
		p.ASIN = ASIN(asinOrURL)
	}
	if p.Marketplace == "" {
		p.Marketplace = marketplace
	}
	return p, nil
}
