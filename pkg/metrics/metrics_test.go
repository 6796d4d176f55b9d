package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	reg := New()

	c := reg.Counter("requests_total", "Total requests")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("counter = %d, want 5", c.Value())
	}

	g := reg.Gauge("queue_depth", "Items queued")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 9 {
		t.Fatalf("gauge = %d, want 9", g.Value())
	}

	// Same name returns the same metric.
	if reg.Counter("requests_total", "") != c {
		t.Fatal("counter not deduplicated by name")
	}
}

func TestRenderFormat(t *testing.T) {
	reg := New()
	reg.Counter("hits_total", "Cache hits").Add(3)
	reg.Gauge("depth", "").Set(2)

	out := reg.Render()
	for _, want := range []string{
		"# HELP hits_total Cache hits",
		"# TYPE hits_total counter",
		"hits_total 3",
		"# TYPE depth gauge",
		"depth 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("m", "provider", "openai"); got != `m{provider="openai"}` {
		t.Fatalf("WithLabels = %q", got)
	}
	if got := WithLabels("m", "a", "1", "b", "2"); got != `m{a="1",b="2"}` {
		t.Fatalf("WithLabels = %q", got)
	}
	// Odd pairs are ignored rather than producing invalid series.
	if got := WithLabels("m", "dangling"); got != "m" {
		t.Fatalf("WithLabels = %q", got)
	}
}

func TestLabeledSeriesShareOneHeader(t *testing.T) {
	reg := New()
	reg.Counter(WithLabels("llm_success_total", "provider", "openai"), "Successes").Inc()
	reg.Counter(WithLabels("llm_success_total", "provider", "anthropic"), "Successes").Add(2)

	out := reg.Render()
	if strings.Count(out, "# TYPE llm_success_total counter") != 1 {
		t.Fatalf("labeled series should share one TYPE line:\n%s", out)
	}
	if !strings.Contains(out, `llm_success_total{provider="anthropic"} 2`) {
		t.Fatalf("missing anthropic series:\n%s", out)
	}
	if !strings.Contains(out, `llm_success_total{provider="openai"} 1`) {
		t.Fatalf("missing openai series:\n%s", out)
	}
}

func TestHistogramRender(t *testing.T) {
	reg := New()
	h := reg.Histogram("latency_seconds", "Latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := reg.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="10"} 3`,
		`latency_seconds_bucket{le="+Inf"} 3`,
		"latency_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	reg := New()
	reg.Counter("x_total", "").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "x_total 1") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestConcurrentUse(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				reg.Counter("shared_total", "").Inc()
				reg.Histogram("shared_seconds", "", nil).Observe(0.01)
			}
		}()
	}
	wg.Wait()

	if v := reg.Counter("shared_total", "").Value(); v != 8000 {
		t.Fatalf("counter = %d, want 8000", v)
	}
}
