package bulletin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bulletin-scraper/lib/telemetry"
)

func newTestClient(t testing.TB) *Client {
	client, err := NewClient(ClientOptions{
		MinDelay:  time.Millisecond,
		MaxDelay:  time.Millisecond * 2,
		RetryWait: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestPagePermanentFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Page(context.Background(), server.URL+"/university-course-descriptions/undergraduate/nope/")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.True(t, fetchErr.Permanent())
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	// 4xx must not be retried
	require.EqualValues(t, 1, hits.Load())
}

func TestPageRetriesTransientFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := newTestClient(t)
	body, err := client.Page(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, "recovered", string(body))
	require.EqualValues(t, 3, hits.Load())
}

func TestPageTransientFailureExhausted(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Page(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.False(t, fetchErr.Permanent())
	require.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	require.EqualValues(t, 3, hits.Load())
}

func TestPagePoliteDelay(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{
		MinDelay: time.Millisecond * 60,
		MaxDelay: time.Millisecond * 80,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Page(context.Background(), server.URL)
	require.NoError(t, err)
	_, err = client.Page(context.Background(), server.URL)
	require.NoError(t, err)

	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*60)
}

func TestPageCancelledWhileWaiting(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{
		MinDelay: time.Second * 30,
		MaxDelay: time.Second * 31,
	})
	require.NoError(t, err)

	// first request goes out immediately, the second has to sit in the
	// politeness gate where cancellation must reach it
	_, err = client.Page(context.Background(), server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Page(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscovery(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/university-course-descriptions/":
			w.Write(readFixture(t, "categories.html"))
		case "/university-course-descriptions/undergraduate/":
			w.Write(readFixture(t, "category_subjects.html"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t)
	ctx := context.Background()

	categories, err := client.Categories(ctx, server.URL+"/university-course-descriptions/")
	require.NoError(t, err)
	require.Len(t, categories, 5)
	require.Equal(t, "Undergraduate Course Descriptions", categories[0].Name)
	require.Equal(t, server.URL+"/university-course-descriptions/undergraduate/", categories[0].Href)

	subjects, err := client.Subjects(ctx, categories[0].Href)
	require.NoError(t, err)
	// letter-index anchors are navigation, not subjects
	require.Len(t, subjects, 5)
	require.Equal(t, "Accounting (ACCTG)", subjects[0].Name)
	require.Equal(t, server.URL+"/university-course-descriptions/undergraduate/acctg/", subjects[0].Href)
}

func TestDiscoveryLayoutChanged(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:bulletin")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(readFixture(t, "not_a_subject.html"))
	}))
	defer server.Close()

	client := newTestClient(t)
	ctx := context.Background()

	var parseErr *ParseError
	_, err := client.Categories(ctx, server.URL+"/university-course-descriptions/")
	require.True(t, errors.As(err, &parseErr))

	_, err = client.Subjects(ctx, server.URL+"/university-course-descriptions/undergraduate/")
	require.True(t, errors.As(err, &parseErr))
}
