package scanner

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/quirkscan/quirkscan/pkg/finding"
	"github.com/quirkscan/quirkscan/pkg/probe"
)

// stubCheck yields canned findings, or panics when told to.
type stubCheck struct {
	Toggle
	name     string
	module   string
	findings []*finding.Finding
	panics   bool
	passives int
	actives  int
}

func (s *stubCheck) Name() string   { return s.name }
func (s *stubCheck) Module() string { return s.module }

func (s *stubCheck) Passive(ctx context.Context, baseline *probe.Exchange) []*finding.Finding {
	s.passives++
	if s.panics {
		panic("boom")
	}
	return s.findings
}

func (s *stubCheck) Active(ctx context.Context, baseline *probe.Exchange, ip probe.InsertionPoint) []*finding.Finding {
	s.actives++
	if s.panics {
		panic("boom")
	}
	return s.findings
}

func stubFinding(module, name string) *finding.Finding {
	f := finding.New(module, name)
	f.URL = "https://target.example/"
	return f
}

func baseline(t *testing.T, rawurl string) *probe.Exchange {
	t.Helper()
	req, err := probe.NewRequest(http.MethodGet, rawurl)
	if err != nil {
		t.Fatal(err)
	}
	return &probe.Exchange{Request: req, Response: &probe.Result{Status: 200}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRunnerRecordsFindings(t *testing.T) {
	c := &stubCheck{name: "A", module: "ssti",
		findings: []*finding.Finding{stubFinding("ssti", "hit")}}
	r := NewRunner([]Check{c}, nil, testLogger())

	got := r.Passive(context.Background(), baseline(t, "https://target.example/page"))
	if len(got) != 1 {
		t.Fatalf("Passive() returned %d findings, want 1", len(got))
	}
	if r.Ledger().Size() != 1 {
		t.Errorf("ledger size = %d, want 1", r.Ledger().Size())
	}
}

func TestRunnerPanicIsolation(t *testing.T) {
	bad := &stubCheck{name: "bad", module: "ssti", panics: true}
	good := &stubCheck{name: "good", module: "orm",
		findings: []*finding.Finding{stubFinding("orm", "hit")}}
	r := NewRunner([]Check{bad, good}, nil, testLogger())

	got := r.Passive(context.Background(), baseline(t, "https://target.example/page"))
	if len(got) != 1 {
		t.Fatalf("a panicking check must not stop the pass, got %d findings", len(got))
	}
	if good.passives != 1 {
		t.Error("the check after the panic never ran")
	}
}

func TestRunnerSkipsDisabledChecks(t *testing.T) {
	c := &stubCheck{name: "A", module: "ssti",
		findings: []*finding.Finding{stubFinding("ssti", "hit")}}
	c.SetEnabled(false)
	r := NewRunner([]Check{c}, nil, testLogger())

	got := r.Active(context.Background(), baseline(t, "https://target.example/page"), nil)
	if len(got) != 0 {
		t.Errorf("disabled check produced %d findings", len(got))
	}
	if c.actives != 0 {
		t.Error("disabled check was invoked")
	}
}

func TestRunnerSkipsStaticAssets(t *testing.T) {
	c := &stubCheck{name: "A", module: "ssti",
		findings: []*finding.Finding{stubFinding("ssti", "hit")}}
	r := NewRunner([]Check{c}, nil, testLogger())

	got := r.Passive(context.Background(), baseline(t, "https://target.example/app.css"))
	if len(got) != 0 {
		t.Errorf("static asset produced %d findings", len(got))
	}
	if c.passives != 0 {
		t.Error("check ran against a static asset")
	}
}

func TestRunnerHonoursCancellation(t *testing.T) {
	c := &stubCheck{name: "A", module: "ssti"}
	r := NewRunner([]Check{c}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Passive(ctx, baseline(t, "https://target.example/page"))
	if c.passives != 0 {
		t.Error("check ran under a cancelled context")
	}
}

func TestRunnerDeduplicatesAcrossPasses(t *testing.T) {
	c := &stubCheck{name: "A", module: "ssti",
		findings: []*finding.Finding{stubFinding("ssti", "hit")}}
	r := NewRunner([]Check{c}, nil, testLogger())

	b := baseline(t, "https://target.example/page")
	r.Passive(context.Background(), b)
	r.Passive(context.Background(), b)
	if r.Ledger().Size() != 1 {
		t.Errorf("ledger size = %d after repeated pass, want 1", r.Ledger().Size())
	}
}

func TestBaseValidateDefaults(t *testing.T) {
	var b Base
	b.Validate()
	if b.Sender == nil {
		t.Error("Validate() must fill a default sender")
	}
	if b.MaxPayloads != 50 {
		t.Errorf("MaxPayloads = %d, want 50", b.MaxPayloads)
	}
	if b.Logger == nil {
		t.Error("Validate() must fill a default logger")
	}
}

func TestBaseLimit(t *testing.T) {
	b := Base{MaxPayloads: 3}
	if got := b.Limit(10); got != 3 {
		t.Errorf("Limit(10) = %d, want 3", got)
	}
	if got := b.Limit(2); got != 2 {
		t.Errorf("Limit(2) = %d, want 2", got)
	}
}
