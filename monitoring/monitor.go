package monitoring

import (
	"sync"
	"time"
)

const recentAuditLimit = 20

// Monitor keeps running statistics about the audits served by this process.
type Monitor struct {
	metrics *Metrics
	stats   MonitoringStats
	recent  []AuditRecord
	mutex   sync.RWMutex
}

// MonitoringStats is the snapshot served on /monitoring/stats.
type MonitoringStats struct {
	StartTime        time.Time      `json:"start_time"`
	Uptime           string         `json:"uptime"`
	PagesFetched     int            `json:"pages_fetched"`
	FetchFailures    int            `json:"fetch_failures"`
	LinksDiscovered  int            `json:"links_discovered"`
	InternalLinks    int            `json:"internal_links"`
	ExternalLinks    int            `json:"external_links"`
	LinksChecked     int            `json:"links_checked"`
	BrokenLinks      int            `json:"broken_links"`
	BrokenRate       float64        `json:"broken_rate"`
	LinkChecks       int            `json:"link_checks"`
	AverageCheckTime time.Duration  `json:"average_check_time"`
	LastAuditTime    time.Time      `json:"last_audit_time"`
	AuditsByKind     map[string]int `json:"audits_by_kind"`
	RecentAudits     []AuditRecord  `json:"recent_audits"`
	totalCheckTime   time.Duration
}

// AuditRecord summarizes one completed audit request.
type AuditRecord struct {
	Kind     string        `json:"kind"`
	URL      string        `json:"url"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
	Links    int           `json:"links"`
	Checked  int           `json:"checked,omitempty"`
	Broken   int           `json:"broken,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func NewMonitor(metrics *Metrics) *Monitor {
	return &Monitor{
		metrics: metrics,
		stats: MonitoringStats{
			StartTime:    time.Now(),
			AuditsByKind: make(map[string]int),
		},
	}
}

// Metrics returns the collectors shared with fetchers and the verifier.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// RecordFetch counts a top-level page fetch.
func (m *Monitor) RecordFetch(backend string, err error) {
	m.mutex.Lock()
	m.stats.PagesFetched++
	if err != nil {
		m.stats.FetchFailures++
	}
	m.mutex.Unlock()

	if m.metrics != nil {
		m.metrics.ObserveFetch(backend, err)
	}
}

// RecordExtraction counts the links produced for one page.
func (m *Monitor) RecordExtraction(internal, external int) {
	m.mutex.Lock()
	m.stats.LinksDiscovered += internal + external
	m.stats.InternalLinks += internal
	m.stats.ExternalLinks += external
	m.mutex.Unlock()

	if m.metrics != nil {
		m.metrics.LinksExtractedTotal.Add(float64(internal + external))
	}
}

// RecordLinkCheck folds one verification batch into the running totals.
func (m *Monitor) RecordLinkCheck(checked, broken int, elapsed time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stats.LinkChecks++
	m.stats.LinksChecked += checked
	m.stats.BrokenLinks += broken
	m.stats.totalCheckTime += elapsed
}

// RecordAudit appends a finished request to the recent audit list.
func (m *Monitor) RecordAudit(record AuditRecord) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.stats.AuditsByKind[record.Kind]++
	m.stats.LastAuditTime = record.At

	m.recent = append(m.recent, record)
	if len(m.recent) > recentAuditLimit {
		m.recent = m.recent[len(m.recent)-recentAuditLimit:]
	}
}

// GetComprehensiveStats returns a copy of the current statistics.
func (m *Monitor) GetComprehensiveStats() MonitoringStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snapshot := m.stats
	snapshot.Uptime = time.Since(m.stats.StartTime).Round(time.Second).String()

	snapshot.AuditsByKind = make(map[string]int, len(m.stats.AuditsByKind))
	for kind, count := range m.stats.AuditsByKind {
		snapshot.AuditsByKind[kind] = count
	}

	// newest first
	snapshot.RecentAudits = make([]AuditRecord, 0, len(m.recent))
	for i := len(m.recent) - 1; i >= 0; i-- {
		snapshot.RecentAudits = append(snapshot.RecentAudits, m.recent[i])
	}

	if m.stats.LinksChecked > 0 {
		snapshot.BrokenRate = float64(m.stats.BrokenLinks) / float64(m.stats.LinksChecked)
	}
	if m.stats.LinkChecks > 0 {
		snapshot.AverageCheckTime = m.stats.totalCheckTime / time.Duration(m.stats.LinkChecks)
	}

	return snapshot
}
