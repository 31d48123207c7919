package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/heartaudit/internal/model"
	"github.com/verte-zerg/heartaudit/internal/store"
)

const sampleCSV = header +
	"63,1,3,145,233,1,0,150,0,2.3,0,0,1,1\n" +
	"41,0,1,130,204,0,0,172,0,1.4,2,0,2,0\n" +
	"oops\n"

func csvServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFetch(t *testing.T) {
	srv := csvServer(t, http.StatusOK, sampleCSV)
	result, err := Fetch(context.Background(), srv.Client(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.Dropped)
}

func TestFetchBadStatus(t *testing.T) {
	srv := csvServer(t, http.StatusNotFound, "")
	_, err := Fetch(context.Background(), srv.Client(), srv.URL, time.Second)
	assert.ErrorContains(t, err, "404")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	_, err := Fetch(context.Background(), srv.Client(), srv.URL, 50*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLoaderNetworkSavesSnapshot(t *testing.T) {
	srv := csvServer(t, http.StatusOK, sampleCSV)
	st := openStore(t)
	loader := &Loader{URL: srv.URL, Client: srv.Client(), Timeout: time.Second, Cache: st}

	res := loader.Load(context.Background())
	assert.Equal(t, OriginNetwork, res.Origin)
	assert.Len(t, res.Records, 2)
	require.NotNil(t, res.Snapshot)
	assert.NoError(t, res.FetchErr)

	snaps, err := st.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, srv.URL, snaps[0].Source)
	assert.Equal(t, 1, snaps[0].Dropped)
}

func TestLoaderFallsBackToCache(t *testing.T) {
	st := openStore(t)
	srv := csvServer(t, http.StatusInternalServerError, "")
	cached := []model.Record{model.DefaultPatient().WithLabel(1)}
	_, err := st.SaveSnapshot(context.Background(), srv.URL, time.Now(), cached, 0)
	require.NoError(t, err)

	loader := &Loader{URL: srv.URL, Client: srv.Client(), Timeout: time.Second, Cache: st}
	res := loader.Load(context.Background())
	assert.Equal(t, OriginCache, res.Origin)
	assert.Equal(t, cached, res.Records)
	assert.Error(t, res.FetchErr)
}

func TestLoaderDegradesToEmpty(t *testing.T) {
	srv := csvServer(t, http.StatusOK, "not,a,dataset\n")
	loader := &Loader{URL: srv.URL, Client: srv.Client(), Timeout: time.Second, Cache: openStore(t)}
	res := loader.Load(context.Background())
	assert.Equal(t, OriginEmpty, res.Origin)
	assert.Empty(t, res.Records)
	assert.Error(t, res.FetchErr)
}

func TestLoaderWithoutCache(t *testing.T) {
	loader := &Loader{URL: "http://127.0.0.1:0/heart.csv", Timeout: time.Second}
	res := loader.Load(context.Background())
	assert.Equal(t, OriginEmpty, res.Origin)
}

func TestLoaderOfflineSkipsNetwork(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(sampleCSV))
	}))
	t.Cleanup(srv.Close)
	st := openStore(t)
	_, err := st.SaveSnapshot(context.Background(), srv.URL, time.Now(), []model.Record{model.DefaultPatient()}, 0)
	require.NoError(t, err)

	loader := &Loader{URL: srv.URL, Client: srv.Client(), Cache: st, Offline: true}
	res := loader.Load(context.Background())
	assert.Equal(t, OriginCache, res.Origin)
	assert.Zero(t, hits)
	assert.NoError(t, res.FetchErr)
}

func TestLoaderPrunesOldSnapshots(t *testing.T) {
	srv := csvServer(t, http.StatusOK, sampleCSV)
	st := openStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	loader := &Loader{URL: srv.URL, Client: srv.Client(), Cache: st, now: func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}}
	for i := 0; i < keepSnapshots+2; i++ {
		loader.Load(context.Background())
	}
	snaps, err := st.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, keepSnapshots)
}
