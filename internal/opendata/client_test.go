package opendata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridheadroom/internal/config"
	"github.com/jgoulah/gridheadroom/internal/demand"
	"github.com/jgoulah/gridheadroom/internal/zones"
	"github.com/jgoulah/gridheadroom/pkg/models"
)

const zonesResponse = `{
  "nhits": 2,
  "records": [
    {
      "recordid": "a1",
      "fields": {
        "primary": "Bow",
        "grid_site": "West Ham",
        "demandrag": "Green",
        "geo_shape": {"type": "Polygon", "coordinates": [[[-0.03,51.52],[-0.01,51.52],[-0.01,51.54],[-0.03,51.54],[-0.03,51.52]]]}
      },
      "geometry": {"type": "Point", "coordinates": [-0.02, 51.53]}
    },
    {
      "recordid": "a2",
      "fields": {"primary": "Broken"},
      "geometry": {"type": "Point", "coordinates": [0.1, 51.6]}
    }
  ]
}`

func newTestClient(url string, mutate func(*config.OpenDataConfig)) *Client {
	cfg := config.OpenDataConfig{
		BaseURL:    url,
		APIKey:     "secret",
		RetryDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, time.UTC)
}

func TestFetchZones(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ukpn_primary_postcode_area", q.Get("dataset"))
		assert.Equal(t, "5000", q.Get("rows"))
		assert.Equal(t, "0", q.Get("start"))
		assert.Equal(t, "51.53,-0.02,10000", q.Get("geofilter.distance"))
		assert.Equal(t, "secret", q.Get("apikey"))
		assert.Equal(t, "Apikey secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(zonesResponse))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	records, err := c.FetchZones(context.Background(), models.Location{Lat: 51.53, Lon: -0.02}, 10000)
	require.NoError(t, err)
	require.Len(t, records, 2)

	collection, skipped := zones.IngestStats(records)
	assert.Equal(t, 1, skipped)
	require.Len(t, collection, 1)
	assert.Equal(t, "Bow", collection[0].Name())
}

func TestFetchZonesNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nhits": 0, "records": []}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL, nil).FetchZones(context.Background(), models.Location{}, 100)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetchZonesRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(zonesResponse))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL, nil).FetchZones(context.Background(), models.Location{}, 100)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchZonesGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, func(c *config.OpenDataConfig) { c.Retries = 1 }).
		FetchZones(context.Background(), models.Location{}, 100)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "giving up after 2 attempts")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchZonesRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(zonesResponse))
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL, nil).FetchZones(context.Background(), models.Location{}, 100)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetchZonesNoRetriesConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, func(c *config.OpenDataConfig) { c.Retries = -1 }).
		FetchZones(context.Background(), models.Location{}, 100)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchZonesFormatsSmallCoordinatesWithoutExponent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0.00001,-0.0000025,500", r.URL.Query().Get("geofilter.distance"))
		w.Write([]byte(`{"nhits": 0, "records": []}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).
		FetchZones(context.Background(), models.Location{Lat: 0.00001, Lon: -0.0000025}, 500)
	require.NoError(t, err)
}

func TestFetchZonesClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).FetchZones(context.Background(), models.Location{}, 100)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "bad key")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchZonesBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).FetchZones(context.Background(), models.Location{}, 100)
	assert.Error(t, err)
}

func TestFetchDemand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "primary-load", q.Get("dataset"))
		assert.Equal(t, "Bow", q.Get("refine.primary"))
		assert.Equal(t, "timestamp", q.Get("sort"))
		w.Write([]byte(`{"nhits": 5, "records": [
			{"fields": {"primary": "Bow", "timestamp": "2024-01-01T09:00:00+00:00", "current": 5}},
			{"fields": {"primary": "Bow", "timestamp": "2024-01-02T09:00:00+00:00", "current": "7"}},
			{"fields": {"primary": "Bow", "timestamp": "2024-01-01T09:30:00+00:00", "current": 10}},
			{"fields": {"primary": "Bow", "timestamp": "garbage", "current": 99}},
			{"fields": {"primary": "Bow", "timestamp": "2024-01-01T10:00:00+00:00"}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, func(cfg *config.OpenDataConfig) {
		cfg.Demand = config.DemandDataset{Dataset: "primary-load", IDField: "primary"}
	})
	samples, err := c.FetchDemand(context.Background(), "Bow")
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.False(t, samples[3].Valid())
	assert.False(t, samples[4].Valid())

	profile := demand.Aggregate(samples)
	require.Len(t, profile, 2)
	assert.Equal(t, "09:00", profile[0].TimeOfDay.String())
	assert.Equal(t, 6.0, profile[0].AverageCurrentAmps)
	assert.Equal(t, 10.0, profile[1].AverageCurrentAmps)
}

func TestFetchDemandNotConfigured(t *testing.T) {
	_, err := newTestClient("http://unused.invalid", nil).FetchDemand(context.Background(), "Bow")
	assert.ErrorIs(t, err, ErrNoDemandDataset)
}

func TestFetchRespectsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL, nil).FetchZones(ctx, models.Location{}, 100)
	assert.ErrorIs(t, err, context.Canceled)
}
