// Package homepage fetches a business website's landing page and reduces it
// to plain text suitable for classification.
package homepage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/SyedAaraiz0050/territory-intel/internal/resilience"
)

const (
	userAgent = "territory-intel/1.0"
	// maxBodyBytes bounds how much HTML we pull before text extraction.
	maxBodyBytes = 2 << 20
)

// Fetcher retrieves homepage text. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type httpFetcher struct {
	client   *http.Client
	maxChars int
}

// NewFetcher builds a homepage fetcher. maxChars caps the returned text;
// zero means the 10k default.
func NewFetcher(timeout time.Duration, maxChars int) Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 10_000
	}
	return &httpFetcher{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
	}
}

// FetchText GETs the URL, strips script/style/noscript, and returns the
// whitespace-collapsed visible text capped at maxChars. Retryable HTTP
// statuses come back wrapped as transient so callers can retry and leave the
// record pending.
func (f *httpFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrapf(err, "homepage: create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "homepage: fetch %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("homepage: fetch %s: status %d", rawURL, resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return "", resilience.Transient(err, resp.StatusCode)
		}
		return "", err
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	text, err := ExtractText(body)
	if err != nil {
		return "", eris.Wrapf(err, "homepage: parse %s", rawURL)
	}
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	return text, nil
}

// ExtractText reduces an HTML document to its visible text with whitespace
// collapsed to single spaces.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
