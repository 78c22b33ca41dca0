package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequenceServer(t *testing.T, statuses []int, headers []http.Header, body string) (*httptest.Server, *int32) {
	t.Helper()
	var idx int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if headers != nil && i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		w.WriteHeader(statuses[i])
		if statuses[i] == http.StatusOK {
			_, _ = w.Write([]byte(body))
			return
		}
		_, _ = w.Write([]byte("try later"))
	}))
	t.Cleanup(srv.Close)
	return srv, &idx
}

func TestDownloadRetriesOn429And5xx(t *testing.T) {
	srv, calls := sequenceServer(t, []int{429, 503, 200}, []http.Header{{"Retry-After": {"0"}}}, "a,b\n1,2\n")
	dest := filepath.Join(t.TempDir(), "out.csv")

	d := New(2*time.Second, 3, 5*time.Millisecond, 20*time.Millisecond, nil)
	res, err := d.Download(context.Background(), srv.URL+"/data.csv", dest)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, int64(8), res.Bytes)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))
	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestRetryAfterHonored(t *testing.T) {
	srv, _ := sequenceServer(t, []int{429, 200}, []http.Header{{"Retry-After": {"1"}}}, "ok")
	d := New(5*time.Second, 3, time.Millisecond, time.Millisecond, nil)

	start := time.Now()
	_, err := d.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "f"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestNotFoundIsNotRetried(t *testing.T) {
	srv, calls := sequenceServer(t, []int{404}, nil, "")
	dest := filepath.Join(t.TempDir(), "f")
	d := New(time.Second, 5, time.Millisecond, time.Millisecond, nil)

	_, err := d.Download(context.Background(), srv.URL, dest)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, "try later", se.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestRateLimitExhausted(t *testing.T) {
	srv, calls := sequenceServer(t, []int{429}, nil, "")
	d := New(time.Second, 2, time.Millisecond, time.Millisecond, nil)

	_, err := d.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "f"))
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := New(time.Second, 2, time.Millisecond, time.Millisecond, nil)
	_, err := d.Download(context.Background(), url, filepath.Join(t.TempDir(), "f"))
	var ue *UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.NotEmpty(t, ue.Host)
}

func TestDownloadCancelled(t *testing.T) {
	srv, _ := sequenceServer(t, []int{503}, nil, "")
	d := New(time.Second, 5, time.Hour, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.Download(ctx, srv.URL, filepath.Join(t.TempDir(), "f"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAllUsesConfiguredNames(t *testing.T) {
	srv, _ := sequenceServer(t, []int{200}, nil, "x")
	dir := filepath.Join(t.TempDir(), "data")
	d := New(time.Second, 1, time.Millisecond, time.Millisecond, nil)

	res, err := d.All(context.Background(),
		map[string]string{"gdp": srv.URL + "/gdp.csv", "population": srv.URL + "/pop/world.csv"},
		map[string]string{"gdp": "co2-emissions-vs-gdp.csv"}, dir)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "gdp", res[0].Kind)
	assert.Equal(t, filepath.Join(dir, "co2-emissions-vs-gdp.csv"), res[0].Path)
	assert.Equal(t, filepath.Join(dir, "world.csv"), res[1].Path)
}

func TestFileName(t *testing.T) {
	_, err := FileName("https://example.org/", "")
	assert.Error(t, err)
	n, err := FileName("https://example.org/a/b.csv?dl=1", "")
	require.NoError(t, err)
	assert.Equal(t, "b.csv", n)
}

func TestParseRetryAfter(t *testing.T) {
	s, err := parseRetryAfterSeconds("7")
	require.NoError(t, err)
	assert.Equal(t, 7, s)
	_, err = parseRetryAfterSeconds("soon")
	assert.Error(t, err)
	s, err = parseRetryAfterSeconds(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
	require.NoError(t, err)
	assert.Zero(t, s)
}
