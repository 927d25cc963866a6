package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingPage(rows []string, next bool) string {
	links := ""
	for _, r := range rows {
		links += fmt.Sprintf(`<tr><td><a href="%s">doc</a></td></tr>`, r)
	}
	nextLink := ""
	if next {
		nextLink = `<a rel="next" href="?page=2">Next</a>`
	}
	return fmt.Sprintf(`<html><body><div id="content">
		<table><tbody>%s</tbody></table>%s
	</div></body></html>`, links, nextLink)
}

func testScraper(baseURL string) *Scraper {
	return New(Config{
		BaseURL:           baseURL,
		DocType:           "uksi",
		Year:              2024,
		Timeout:           2 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		RequestsPerSecond: 1000,
		MaxPages:          10,
	}, nil)
}

func TestDiscoverDocumentsSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage([]string{
			"/uksi/2024/1/contents/made",
			"/uksi/2024/2/contents/made",
			"/uksi/2024/3/contents",
		}, false))
	}))
	defer srv.Close()

	docs, err := testScraper(srv.URL).DiscoverDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/uksi/2024/1/made",
		srv.URL + "/uksi/2024/2/made",
		srv.URL + "/uksi/2024/3/made",
	}, docs)
}

func TestDiscoverDocumentsPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, listingPage([]string{"/uksi/2024/1/made"}, true))
		case "2":
			fmt.Fprint(w, listingPage([]string{"/uksi/2024/2/made"}, false))
		default:
			fmt.Fprint(w, listingPage(nil, false))
		}
	}))
	defer srv.Close()

	docs, err := testScraper(srv.URL).DiscoverDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDiscoverDocumentsDedupes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage([]string{
			"/uksi/2024/1/contents/made",
			"/uksi/2024/1/made",
		}, false))
	}))
	defer srv.Close()

	docs, err := testScraper(srv.URL).DiscoverDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDiscoverDocumentsSourceFormatChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="content"><p>We have redesigned!</p></div></body></html>`)
	}))
	defer srv.Close()

	_, err := testScraper(srv.URL).DiscoverDocuments(context.Background())
	assert.ErrorIs(t, err, ErrSourceFormat)
}

func TestDiscoverDocumentsCategoryFilter(t *testing.T) {
	var gotText atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotText.Store(r.URL.Query().Get("text"))
		fmt.Fprint(w, listingPage([]string{"/uksi/2024/1/made"}, false))
	}))
	defer srv.Close()

	s := New(Config{
		BaseURL:           srv.URL,
		Category:          "planning",
		RequestsPerSecond: 1000,
		RetryBackoff:      time.Millisecond,
	}, nil)
	_, err := s.DiscoverDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "planning", gotText.Load())
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "document body")
	}))
	defer srv.Close()

	body, err := testScraper(srv.URL).Fetch(context.Background(), srv.URL+"/uksi/2024/1/made")
	require.NoError(t, err)
	assert.Equal(t, "document body", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testScraper(srv.URL).Fetch(context.Background(), srv.URL+"/uksi/2024/1/made")
	assert.ErrorIs(t, err, ErrFetchFailed)
	// MaxRetries=2 means 3 attempts total.
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testScraper(srv.URL).Fetch(context.Background(), srv.URL+"/uksi/2024/404/made")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestFetchSendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	_, err := testScraper(srv.URL).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testScraper("http://127.0.0.1:1").Fetch(ctx, "http://127.0.0.1:1/doc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMadeURL(t *testing.T) {
	s := testScraper("https://www.legislation.gov.uk")
	tests := []struct {
		in   string
		want string
	}{
		{"/uksi/2024/1/contents/made", "https://www.legislation.gov.uk/uksi/2024/1/made"},
		{"/uksi/2024/1/contents", "https://www.legislation.gov.uk/uksi/2024/1/made"},
		{"/uksi/2024/1/made", "https://www.legislation.gov.uk/uksi/2024/1/made"},
		{"/uksi/2024/1", "https://www.legislation.gov.uk/uksi/2024/1/made"},
		{"/uksi/2024/1?view=plain", "https://www.legislation.gov.uk/uksi/2024/1/made"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, s.MadeURL(tt.in))
		})
	}
}
