package monitoring

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitorStats(t *testing.T) {
	monitor := NewMonitor(NewMetrics(prometheus.NewRegistry()))

	monitor.RecordFetch("http", nil)
	monitor.RecordFetch("http", errors.New("refused"))
	monitor.RecordExtraction(3, 2)
	monitor.RecordLinkCheck(40, 4, 2*time.Second)
	monitor.RecordLinkCheck(10, 1, 4*time.Second)

	stats := monitor.GetComprehensiveStats()

	if stats.PagesFetched != 2 || stats.FetchFailures != 1 {
		t.Errorf("fetches = %d, failures = %d", stats.PagesFetched, stats.FetchFailures)
	}
	if stats.LinksDiscovered != 5 || stats.InternalLinks != 3 || stats.ExternalLinks != 2 {
		t.Errorf("links = %d/%d/%d", stats.LinksDiscovered, stats.InternalLinks, stats.ExternalLinks)
	}
	if stats.LinksChecked != 50 || stats.BrokenLinks != 5 || stats.LinkChecks != 2 {
		t.Errorf("checks = %d/%d/%d", stats.LinksChecked, stats.BrokenLinks, stats.LinkChecks)
	}
	if stats.BrokenRate != 0.1 {
		t.Errorf("BrokenRate = %v, want 0.1", stats.BrokenRate)
	}
	if stats.AverageCheckTime != 3*time.Second {
		t.Errorf("AverageCheckTime = %v, want 3s", stats.AverageCheckTime)
	}
}

func TestMonitorRecentAudits(t *testing.T) {
	monitor := NewMonitor(nil)

	base := time.Now()
	for i := 0; i < recentAuditLimit+5; i++ {
		monitor.RecordAudit(AuditRecord{
			Kind: "extract-links",
			URL:  fmt.Sprintf("https://example.com/%d", i),
			At:   base.Add(time.Duration(i) * time.Second),
		})
	}

	stats := monitor.GetComprehensiveStats()
	if len(stats.RecentAudits) != recentAuditLimit {
		t.Fatalf("kept %d audits, want %d", len(stats.RecentAudits), recentAuditLimit)
	}
	newest := fmt.Sprintf("https://example.com/%d", recentAuditLimit+4)
	if stats.RecentAudits[0].URL != newest {
		t.Errorf("first audit = %q, want newest %q", stats.RecentAudits[0].URL, newest)
	}
	if stats.AuditsByKind["extract-links"] != recentAuditLimit+5 {
		t.Errorf("AuditsByKind = %v", stats.AuditsByKind)
	}
	if !stats.LastAuditTime.Equal(base.Add(time.Duration(recentAuditLimit+4) * time.Second)) {
		t.Errorf("LastAuditTime = %v", stats.LastAuditTime)
	}

	// the snapshot is a copy
	stats.AuditsByKind["extract-links"] = 0
	if monitor.GetComprehensiveStats().AuditsByKind["extract-links"] == 0 {
		t.Error("mutating a snapshot changed the monitor")
	}
}

func TestMonitorWithoutMetrics(t *testing.T) {
	monitor := NewMonitor(nil)
	monitor.RecordFetch("colly", nil)
	monitor.RecordExtraction(1, 1)

	if monitor.Metrics() != nil {
		t.Error("Metrics() should be nil when none were given")
	}
	if stats := monitor.GetComprehensiveStats(); stats.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", stats.PagesFetched)
	}
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	monitor := NewMonitor(metrics)

	monitor.RecordFetch("browser", nil)
	monitor.RecordFetch("browser", errors.New("timeout"))
	monitor.RecordExtraction(4, 3)
	metrics.ObserveProbe(OutcomeTimeout, 5)
	metrics.ObserveProbe(OutcomeHealthy, 0.2)
	metrics.ObserveProbe(OutcomeHealthy, 0.3)

	tests := []struct {
		name      string
		collector prometheus.Collector
		expected  float64
	}{
		{name: "Successful fetches", collector: metrics.PageFetchesTotal.WithLabelValues("browser", "success"), expected: 1},
		{name: "Failed fetches", collector: metrics.PageFetchesTotal.WithLabelValues("browser", "failure"), expected: 1},
		{name: "Links extracted", collector: metrics.LinksExtractedTotal, expected: 7},
		{name: "Healthy probes", collector: metrics.LinkProbesTotal.WithLabelValues(OutcomeHealthy), expected: 2},
		{name: "Timed out probes", collector: metrics.LinkProbesTotal.WithLabelValues(OutcomeTimeout), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.collector); got != tt.expected {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}

	if count := testutil.CollectAndCount(metrics.LinkProbeDuration); count != 1 {
		t.Errorf("LinkProbeDuration series = %d, want 1", count)
	}
}
