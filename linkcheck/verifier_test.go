package linkcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sitepulse/config"
	"sitepulse/extract"
	"sitepulse/monitoring"
)

func testConfig() config.LinkCheckConfig {
	return config.LinkCheckConfig{
		MaxLinks:  50,
		Timeout:   5 * time.Second,
		Method:    http.MethodGet,
		UserAgent: "sitepulse-test",
	}
}

func statusServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fine")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/method", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProbeStatuses(t *testing.T) {
	server := statusServer(t)
	verifier := NewVerifier(testConfig(), nil, nil)

	tests := []struct {
		name       string
		path       string
		status     int
		broken     bool
		statusText string
	}{
		{name: "OK", path: "/ok", status: 200, broken: false, statusText: "OK"},
		{name: "Not found", path: "/missing", status: 404, broken: true, statusText: "Not Found"},
		{name: "Server error", path: "/error", status: 500, broken: true, statusText: "Internal Server Error"},
		{name: "Redirect not followed", path: "/moved", status: 301, broken: false, statusText: "Moved Permanently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linkURL := server.URL + tt.path
			status := verifier.Probe(context.Background(), linkURL)

			if status.URL != linkURL {
				t.Errorf("URL = %q, want %q", status.URL, linkURL)
			}
			if status.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", status.HTTPStatus, tt.status)
			}
			if status.IsBroken != tt.broken {
				t.Errorf("IsBroken = %v, want %v", status.IsBroken, tt.broken)
			}
			if status.StatusText != tt.statusText {
				t.Errorf("StatusText = %q, want %q", status.StatusText, tt.statusText)
			}
		})
	}
}

func TestProbeMethod(t *testing.T) {
	server := statusServer(t)

	status := NewVerifier(testConfig(), nil, nil).Probe(context.Background(), server.URL+"/method")
	if status.HTTPStatus != http.StatusMethodNotAllowed {
		t.Errorf("GET probe status = %d, want 405", status.HTTPStatus)
	}

	cfg := testConfig()
	cfg.Method = http.MethodHead
	status = NewVerifier(cfg, nil, nil).Probe(context.Background(), server.URL+"/method")
	if status.HTTPStatus != http.StatusOK {
		t.Errorf("HEAD probe status = %d, want 200", status.HTTPStatus)
	}
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond

	start := time.Now()
	status := NewVerifier(cfg, nil, nil).Probe(context.Background(), server.URL)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe was not aborted, took %v", elapsed)
	}

	if status.HTTPStatus != 0 || !status.IsBroken || status.StatusText != "Request timeout" {
		t.Errorf("got %+v, want timeout status", status)
	}
}

func TestProbeConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	status := NewVerifier(testConfig(), nil, nil).Probe(context.Background(), target)
	if status.HTTPStatus != 0 || !status.IsBroken {
		t.Errorf("got %+v, want broken status 0", status)
	}
	if status.StatusText == "" || status.StatusText == "Request timeout" {
		t.Errorf("StatusText = %q, want the connection error", status.StatusText)
	}
	if strings.Contains(status.StatusText, target) {
		t.Errorf("StatusText should not repeat the URL: %q", status.StatusText)
	}
}

func TestProbeUnsupportedInput(t *testing.T) {
	verifier := NewVerifier(testConfig(), nil, nil)

	for _, linkURL := range []string{"tel:+15555550100", "ftp://example.com/file", "http://[::1"} {
		t.Run(linkURL, func(t *testing.T) {
			status := verifier.Probe(context.Background(), linkURL)
			if status.HTTPStatus != 0 || !status.IsBroken || status.StatusText == "" {
				t.Errorf("got %+v, want broken status with message", status)
			}
		})
	}
}

func TestProbeCancelledContext(t *testing.T) {
	server := statusServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := NewVerifier(testConfig(), nil, nil).Probe(ctx, server.URL+"/ok")
	if !status.IsBroken || status.HTTPStatus != 0 {
		t.Errorf("got %+v, want broken status for cancelled context", status)
	}
}

func TestVerifyPreservesOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// later links answer first
		var delay int
		var code int
		fmt.Sscanf(r.URL.Path, "/%d/%d", &delay, &code)
		time.Sleep(time.Duration(delay) * time.Millisecond)
		w.WriteHeader(code)
	}))
	defer server.Close()

	paths := []string{"/60/200", "/40/404", "/20/200", "/0/503"}
	links := make([]extract.LinkRecord, len(paths))
	for i, path := range paths {
		links[i] = extract.LinkRecord{AbsoluteURL: server.URL + path}
	}

	statuses := NewVerifier(testConfig(), nil, nil).Verify(context.Background(), links)
	if len(statuses) != len(links) {
		t.Fatalf("got %d statuses, want %d", len(statuses), len(links))
	}

	wantCodes := []int{200, 404, 200, 503}
	for i, status := range statuses {
		if status.URL != links[i].AbsoluteURL {
			t.Errorf("statuses[%d].URL = %q, want %q", i, status.URL, links[i].AbsoluteURL)
		}
		if status.HTTPStatus != wantCodes[i] {
			t.Errorf("statuses[%d].HTTPStatus = %d, want %d", i, status.HTTPStatus, wantCodes[i])
		}
	}
}

func TestVerifyConcurrencyLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
	}))
	defer server.Close()

	links := make([]extract.LinkRecord, 10)
	for i := range links {
		links[i] = extract.LinkRecord{AbsoluteURL: fmt.Sprintf("%s/%d", server.URL, i)}
	}

	cfg := testConfig()
	cfg.MaxConcurrent = 2
	NewVerifier(cfg, nil, nil).Verify(context.Background(), links)

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
}

func TestVerifyEmpty(t *testing.T) {
	statuses := NewVerifier(testConfig(), nil, nil).Verify(context.Background(), nil)
	if len(statuses) != 0 {
		t.Errorf("got %d statuses for no links", len(statuses))
	}
}

type panickingObserver struct{}

func (panickingObserver) ObserveProbe(outcome string, seconds float64) {
	panic("observer exploded")
}

func TestVerifyRepanics(t *testing.T) {
	server := statusServer(t)

	defer func() {
		if r := recover(); r != "observer exploded" {
			t.Errorf("recovered %v, want the probe panic", r)
		}
	}()

	links := []extract.LinkRecord{{AbsoluteURL: server.URL + "/ok"}, {AbsoluteURL: server.URL + "/missing"}}
	NewVerifier(testConfig(), panickingObserver{}, nil).Verify(context.Background(), links)
	t.Error("Verify should have panicked")
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *recordingObserver) ObserveProbe(outcome string, seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func TestCheck(t *testing.T) {
	server := statusServer(t)

	var discovered []extract.LinkRecord
	for i := 0; i < 80; i++ {
		path := "/ok"
		if i%10 == 3 {
			path = "/missing"
		}
		discovered = append(discovered, extract.LinkRecord{
			AbsoluteURL: fmt.Sprintf("%s%s?i=%d", server.URL, path, i),
			DisplayText: fmt.Sprintf("link %d", i),
			IsExternal:  i%2 == 0,
		})
	}

	observer := &recordingObserver{outcomes: make(map[string]int)}
	summary := NewVerifier(testConfig(), observer, nil).Check(context.Background(), discovered)

	if summary.TotalDiscoveredLinks != 80 {
		t.Errorf("TotalDiscoveredLinks = %d, want 80", summary.TotalDiscoveredLinks)
	}
	if summary.TotalChecked() != 50 {
		t.Errorf("TotalChecked() = %d, want 50", summary.TotalChecked())
	}
	for i, link := range summary.CheckedLinks {
		if link != discovered[i] {
			t.Fatalf("CheckedLinks[%d] = %+v, want %+v", i, link, discovered[i])
		}
	}

	// indexes 3, 13, 23, 33, 43 are broken within the first 50
	if summary.BrokenCount() != 5 {
		t.Fatalf("BrokenCount() = %d, want 5", summary.BrokenCount())
	}
	for n, entry := range summary.BrokenLinks {
		i := n*10 + 3
		if entry.URL != discovered[i].AbsoluteURL || entry.Text != discovered[i].DisplayText {
			t.Errorf("BrokenLinks[%d] = %+v, want link %d", n, entry, i)
		}
		if entry.IsExternal != discovered[i].IsExternal {
			t.Errorf("BrokenLinks[%d].IsExternal = %v, want %v", n, entry.IsExternal, discovered[i].IsExternal)
		}
		if entry.Status != http.StatusNotFound || entry.StatusText != "Not Found" {
			t.Errorf("BrokenLinks[%d] status = %d %q", n, entry.Status, entry.StatusText)
		}
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if observer.outcomes[monitoring.OutcomeHealthy] != 45 || observer.outcomes[monitoring.OutcomeBroken] != 5 {
		t.Errorf("observed outcomes = %v", observer.outcomes)
	}
}

func TestCheckZeroCapKeepsDefault(t *testing.T) {
	server := statusServer(t)

	var discovered []extract.LinkRecord
	for i := 0; i < 80; i++ {
		discovered = append(discovered, extract.LinkRecord{
			AbsoluteURL: fmt.Sprintf("%s/ok?i=%d", server.URL, i),
			DisplayText: fmt.Sprintf("link %d", i),
		})
	}

	cfg := testConfig()
	cfg.MaxLinks = 0
	summary := NewVerifier(cfg, nil, nil).Check(context.Background(), discovered)

	if summary.TotalChecked() != DefaultMaxLinks {
		t.Errorf("TotalChecked() = %d, want %d", summary.TotalChecked(), DefaultMaxLinks)
	}
	if summary.TotalDiscoveredLinks != 80 {
		t.Errorf("TotalDiscoveredLinks = %d, want 80", summary.TotalDiscoveredLinks)
	}
}
