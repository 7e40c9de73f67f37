// Package places is a client for the Google Places API (New): text search
// with pagination and location bias, and place details with field masks.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// Field masks keep the per-call cost down: discovery asks only for identity
// and location, the details call adds the call-ready fields.
const (
	textSearchFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.types,places.primaryType,places.businessStatus,nextPageToken"
	detailsFieldMask = "id,displayName,formattedAddress,location,types,primaryType,businessStatus," +
		"internationalPhoneNumber,nationalPhoneNumber,websiteUri,rating,userRatingCount," +
		"googleMapsUri,regularOpeningHours"
)

// Client performs Places API operations.
type Client interface {
	// TextSearch runs a paginated text query, following nextPageToken up to
	// maxPages pages. Duplicate place IDs across pages are the caller's
	// problem (the store's upsert absorbs them).
	TextSearch(ctx context.Context, query string, bias *Rectangle, maxPages int) ([]Summary, error)
	// Details fetches the call-ready fields for one place ID.
	Details(ctx context.Context, placeID string) (*Details, error)
}

// Rectangle is a lat/lng viewport used as a location bias.
type Rectangle struct {
	LowLat, LowLng   float64
	HighLat, HighLng float64
}

// Summary is the lightweight discovery result.
type Summary struct {
	ID             string
	Name           string
	Address        string
	Lat, Lng       *float64
	PrimaryType    *string
	Types          []string
	BusinessStatus *string
}

// Details carries the enriched call-ready fields for a place.
type Details struct {
	Summary
	Phone       *string
	Website     *string
	Rating      *float64
	ReviewCount *int
	MapsURL     *string
	// HoursJSON is the regularOpeningHours payload, kept verbatim.
	HoursJSON *string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithPageDelay sets the wait before requesting a next page. Page tokens are
// not valid immediately; the API wants a short pause between pages.
func WithPageDelay(d time.Duration) Option {
	return func(c *httpClient) { c.pageDelay = d }
}

type httpClient struct {
	apiKey    string
	baseURL   string
	pageDelay time.Duration
	http      *http.Client
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		pageDelay: 2 * time.Second,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery    string        `json:"textQuery"`
	PageToken    string        `json:"pageToken,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Rectangle rectangleJSON `json:"rectangle"`
}

type rectangleJSON struct {
	Low  latLng `json:"low"`
	High latLng `json:"high"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type placeJSON struct {
	ID             string  `json:"id"`
	DisplayName    struct{ Text string } `json:"displayName"`
	FormattedAddr  string  `json:"formattedAddress"`
	Location       *latLng `json:"location"`
	Types          []string `json:"types"`
	PrimaryType    string   `json:"primaryType"`
	BusinessStatus string   `json:"businessStatus"`

	IntlPhone   string          `json:"internationalPhoneNumber"`
	NatlPhone   string          `json:"nationalPhoneNumber"`
	WebsiteURI  string          `json:"websiteUri"`
	Rating      *float64        `json:"rating"`
	RatingCount *int            `json:"userRatingCount"`
	MapsURI     string          `json:"googleMapsUri"`
	Hours       json.RawMessage `json:"regularOpeningHours"`
}

type textSearchResponse struct {
	Places        []placeJSON `json:"places"`
	NextPageToken string      `json:"nextPageToken"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string, bias *Rectangle, maxPages int) ([]Summary, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	var out []Summary
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		if page > 0 {
			timer := time.NewTimer(c.pageDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, eris.Wrap(ctx.Err(), "places: text search canceled")
			case <-timer.C:
			}
		}

		reqBody := textSearchRequest{TextQuery: query, PageToken: pageToken}
		if bias != nil {
			reqBody.LocationBias = &locationBias{Rectangle: rectangleJSON{
				Low:  latLng{Latitude: bias.LowLat, Longitude: bias.LowLng},
				High: latLng{Latitude: bias.HighLat, Longitude: bias.HighLng},
			}}
		}

		var resp textSearchResponse
		if err := c.post(ctx, "/places:searchText", textSearchFieldMask, reqBody, &resp); err != nil {
			return nil, err
		}

		for _, p := range resp.Places {
			out = append(out, p.summary())
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Details, error) {
	if placeID == "" {
		return nil, eris.New("places: empty place id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/places/"+url.PathEscape(placeID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create details request")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailsFieldMask)

	var p placeJSON
	if err := c.do(req, &p); err != nil {
		return nil, err
	}

	d := &Details{
		Summary:     p.summary(),
		Phone:       optStr(firstNonEmpty(p.IntlPhone, p.NatlPhone)),
		Website:     optStr(p.WebsiteURI),
		Rating:      p.Rating,
		ReviewCount: p.RatingCount,
		MapsURL:     optStr(p.MapsURI),
	}
	if len(p.Hours) > 0 {
		h := string(p.Hours)
		d.HoursJSON = &h
	}
	return d, nil
}

func (c *httpClient) post(ctx context.Context, path, fieldMask string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	return c.do(req, dst)
}

func (c *httpClient) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, dst); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}

func (p placeJSON) summary() Summary {
	s := Summary{
		ID:             p.ID,
		Name:           p.DisplayName.Text,
		Address:        p.FormattedAddr,
		Types:          p.Types,
		PrimaryType:    optStr(p.PrimaryType),
		BusinessStatus: optStr(p.BusinessStatus),
	}
	if p.Location != nil {
		s.Lat = &p.Location.Latitude
		s.Lng = &p.Location.Longitude
	}
	return s
}

func optStr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
