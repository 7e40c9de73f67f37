package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Pagination(t *testing.T) {
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		requests = append(requests, body)

		if len(requests) == 1 {
			w.Write([]byte(`{
				"places": [{"id": "p1", "displayName": {"text": "First Co"},
					"formattedAddress": "1 Main St",
					"location": {"latitude": 47.5, "longitude": -52.7},
					"primaryType": "plumber", "businessStatus": "OPERATIONAL"}],
				"nextPageToken": "tok-2"
			}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{"places": [{"id": "p2", "displayName": {"text": "Second Co"}}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithPageDelay(time.Millisecond))

	results, err := c.TextSearch(context.Background(), "plumber in Gander NL",
		&Rectangle{LowLat: 46.5, LowLng: -59.5, HighLat: 54.9, HighLng: -52.0}, 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.Equal(t, "First Co", results[0].Name)
	assert.Equal(t, "plumber", *results[0].PrimaryType)
	assert.Equal(t, 47.5, *results[0].Lat)
	assert.Equal(t, "p2", results[1].ID)
	assert.Nil(t, results[1].Lat)

	require.Len(t, requests, 2)
	assert.Equal(t, "plumber in Gander NL", requests[0]["textQuery"])
	assert.NotNil(t, requests[0]["locationBias"])
	assert.Equal(t, "tok-2", requests[1]["pageToken"])
}

func TestTextSearch_MaxPagesStopsEarly(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"places": [{"id": "p1"}], "nextPageToken": "always-more"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithPageDelay(time.Millisecond))

	results, err := c.TextSearch(context.Background(), "q", nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, calls)
}

func TestTextSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))

	_, err := c.TextSearch(context.Background(), "q", nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/p1", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))
		w.Write([]byte(`{
			"id": "p1",
			"displayName": {"text": "Avalon Plumbing"},
			"formattedAddress": "12 Water St",
			"internationalPhoneNumber": "+1 709-555-0101",
			"websiteUri": "https://avalonplumbing.example",
			"rating": 4.5,
			"userRatingCount": 37,
			"googleMapsUri": "https://maps.google.com/?cid=1",
			"regularOpeningHours": {"openNow": true}
		}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))

	det, err := c.Details(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Avalon Plumbing", det.Name)
	assert.Equal(t, "+1 709-555-0101", *det.Phone)
	assert.Equal(t, "https://avalonplumbing.example", *det.Website)
	assert.Equal(t, 4.5, *det.Rating)
	assert.Equal(t, 37, *det.ReviewCount)
	require.NotNil(t, det.HoursJSON)
	assert.JSONEq(t, `{"openNow": true}`, *det.HoursJSON)
}

func TestDetails_EmptyID(t *testing.T) {
	c := NewClient("k")
	_, err := c.Details(context.Background(), "")
	assert.Error(t, err)
}
