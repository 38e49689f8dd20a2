package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fusione/authcore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                     { return f.dropped }

func scrape(t *testing.T, c *Collector) (string, *http.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(body), res
}

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})

	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestScrapeIncludesCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 7,
				authcore.MetricLoginLocked:  2,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	body, res := scrape(t, c)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/plain")

	assert.Contains(t, body, "authcore_login_success_total 7")
	assert.Contains(t, body, "authcore_login_locked_total 2")
	assert.Contains(t, body, "authcore_refresh_success_total 0")
	assert.Contains(t, body, `authcore_validate_latency_seconds_bucket{le="0.005"} 1`)
	assert.Contains(t, body, `authcore_validate_latency_seconds_bucket{le="0.5"} 28`)
	assert.Contains(t, body, `authcore_validate_latency_seconds_bucket{le="+Inf"} 36`)
	assert.Contains(t, body, "authcore_validate_latency_seconds_count 36")
	assert.Contains(t, body, "authcore_events_dropped_total 3")
	assert.False(t, strings.Contains(body, "authcore_login_latency_seconds_count"), "absent histogram must be skipped")
}

func TestCollectorAgainstEngine(t *testing.T) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = 4

	engine, err := authcore.New().
		WithConfig(cfg).
		WithDirectory(nopDirectory{}).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.ValidateAccess(t.Context(), "garbage")
	require.Error(t, err)

	body, _ := scrape(t, NewCollector(engine))
	assert.Contains(t, body, "authcore_validate_failure_total 1")
	assert.Contains(t, body, "authcore_validate_latency_seconds_count 1")
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess:   1000,
				authcore.MetricLoginFailure:   40,
				authcore.MetricRefreshSuccess: 800,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	for b.Loop() {
		_ = testutil.CollectAndCount(c)
	}
}
