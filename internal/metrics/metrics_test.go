package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetBuildInfo(t *testing.T) {
	// Reset metrics for testing
	BuildInfo.Reset()

	SetBuildInfo("v1.0.0", "go1.24")

	// Check that metric was set
	count := testutil.CollectAndCount(BuildInfo)
	if count != 1 {
		t.Errorf("expected 1 metric, got %d", count)
	}

	// Verify the value is 1
	value := testutil.ToFloat64(BuildInfo.WithLabelValues("v1.0.0", "go1.24"))
	if value != 1 {
		t.Errorf("expected value 1, got %f", value)
	}
}

func TestObserveChallenge(t *testing.T) {
	// Reset metrics for testing
	ChallengesTotal.Reset()
	// Histograms don't have Reset, but we can still test by observing values

	ObserveChallenge("set", 250*time.Millisecond, nil)
	ObserveChallenge("set", 100*time.Millisecond, nil)
	ObserveChallenge("remove", time.Second, errors.New("boom"))

	successCount := testutil.ToFloat64(ChallengesTotal.WithLabelValues("set", "success"))
	if successCount != 2 {
		t.Errorf("expected 2 set successes, got %f", successCount)
	}

	errorCount := testutil.ToFloat64(ChallengesTotal.WithLabelValues("remove", "error"))
	if errorCount != 1 {
		t.Errorf("expected 1 remove error, got %f", errorCount)
	}
}

func TestObservePropagation(t *testing.T) {
	// Reset metrics for testing
	PropagationChecksTotal.Reset()

	ObservePropagation("present", 12*time.Second, nil)
	ObservePropagation("absent", 45*time.Second, errors.New("not verified"))

	verified := testutil.ToFloat64(PropagationChecksTotal.WithLabelValues("present", "verified"))
	if verified != 1 {
		t.Errorf("expected 1 verified present check, got %f", verified)
	}

	failed := testutil.ToFloat64(PropagationChecksTotal.WithLabelValues("absent", "failed"))
	if failed != 1 {
		t.Errorf("expected 1 failed absent check, got %f", failed)
	}
}

func TestObserveAPIRequest(t *testing.T) {
	// Reset metrics for testing
	APIRequestsTotal.Reset()

	ObserveAPIRequest("GET", 200)
	ObserveAPIRequest("GET", 200)
	ObserveAPIRequest("POST", 403)
	ObserveAPIRequest("GET", 0)

	ok := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "200"))
	if ok != 2 {
		t.Errorf("expected 2 GET/200 requests, got %f", ok)
	}

	forbidden := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "403"))
	if forbidden != 1 {
		t.Errorf("expected 1 POST/403 request, got %f", forbidden)
	}

	failed := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "error"))
	if failed != 1 {
		t.Errorf("expected 1 GET transport failure, got %f", failed)
	}
}

func TestRecordMetrics(t *testing.T) {
	// Reset metrics for testing
	RecordsCreatedTotal.Reset()
	RecordsDeletedTotal.Reset()

	RecordsCreatedTotal.WithLabelValues("example.com").Add(3)
	RecordsDeletedTotal.WithLabelValues("example.com").Add(2)

	created := testutil.ToFloat64(RecordsCreatedTotal.WithLabelValues("example.com"))
	if created != 3 {
		t.Errorf("expected 3 created, got %f", created)
	}

	deleted := testutil.ToFloat64(RecordsDeletedTotal.WithLabelValues("example.com"))
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %f", deleted)
	}
}

func TestProviderHealthy(t *testing.T) {
	// Reset metrics for testing
	ProviderHealthy.Reset()

	ProviderHealthy.WithLabelValues("cloudflare").Set(1)

	healthy := testutil.ToFloat64(ProviderHealthy.WithLabelValues("cloudflare"))
	if healthy != 1 {
		t.Errorf("expected healthy=1, got %f", healthy)
	}
}

func TestMetricNames(t *testing.T) {
	// Verify all metrics use the correct namespace prefix
	expectedPrefix := "acmeweaver_"

	metrics := []prometheus.Collector{
		BuildInfo,
		ChallengesTotal,
		ChallengeDuration,
		RecordsCreatedTotal,
		RecordsDeletedTotal,
		PropagationChecksTotal,
		PropagationSeconds,
		ProviderHealthy,
		ACMEOrdersTotal,
		HTTPRequestsTotal,
	}

	for _, m := range metrics {
		// Get metric descriptions
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		for desc := range ch {
			name := desc.String()
			if !strings.Contains(name, expectedPrefix) {
				t.Errorf("metric %s does not have expected prefix %s", name, expectedPrefix)
			}
		}
	}
}
