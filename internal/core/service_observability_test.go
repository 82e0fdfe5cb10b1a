package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"heredity/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) find(op string, status AuditStatus) (AuditEntry, bool) {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return entry, true
		}
	}
	return AuditEntry{}, false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls  []metricsCall
	worlds int64
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) ObserveInference(_ context.Context, worlds int64) {
	c.worlds += worlds
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	ended map[string][]error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, spanFunc(func(err error) {
		if c.ended == nil {
			c.ended = make(map[string][]error)
		}
		c.ended[op] = append(c.ended[op], err)
	})
}

type spanFunc func(error)

func (f spanFunc) End(err error) { f(err) }

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level string) int {
	n := 0
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}

type warnRule struct{}

func (warnRule) Name() string { return "warn_everything" }

func (warnRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	for range changes {
		res.Violations = append(res.Violations, Violation{Rule: "warn_everything", Severity: domain.SeverityWarn, Message: "noted"})
	}
	return res, nil
}

type rulePlugin struct {
	name  string
	rules []Rule
	err   error
}

func (p rulePlugin) Name() string    { return p.name }
func (p rulePlugin) Version() string { return "1.0.0" }
func (p rulePlugin) Register(r *PluginRegistry) error {
	if p.err != nil {
		return p.err
	}
	for _, rule := range p.rules {
		r.RegisterRule(rule)
	}
	return nil
}

func sampleFamily() []Person {
	return []Person{
		{Base: domain.Base{ID: "child"}, Name: "Child", ParentIDs: []string{"mother", "father"}},
		{Base: domain.Base{ID: "mother"}, Name: "Mother", Trait: domain.TraitAbsent},
		{Base: domain.Base{ID: "father"}, Name: "Father"},
	}
}

func TestServiceObservesOperations(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	logger := &captureLogger{}
	svc := NewInMemoryService(nil,
		WithClock(ClockFunc(func() time.Time { return fixed })),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithLogger(logger),
	)
	ctx := context.Background()

	family, _, _, err := svc.ImportPedigree(ctx, "sample", sampleFamily())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !family.CreatedAt.Equal(fixed) {
		t.Fatalf("store clock not overridden: %v", family.CreatedAt)
	}
	report, err := svc.RunInference(ctx, family.ID)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if _, err := svc.DeletePerson(ctx, "missing"); err == nil {
		t.Fatalf("expected delete failure")
	}

	entry, ok := audit.find("import_pedigree", AuditStatusSuccess)
	if !ok || entry.EntityID != family.ID || entry.Entity != EntityFamily || !entry.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected import audit %+v", entry)
	}
	entry, ok = audit.find("run_inference", AuditStatusSuccess)
	if !ok || entry.EntityID != report.ID || entry.Action != domain.ActionCreate {
		t.Fatalf("unexpected inference audit %+v", entry)
	}
	entry, ok = audit.find("delete_person", AuditStatusError)
	if !ok || entry.EntityID != "missing" || entry.Error == "" {
		t.Fatalf("unexpected delete audit %+v", entry)
	}

	if !metrics.has("import_pedigree", true) || !metrics.has("delete_person", false) {
		t.Fatalf("metrics not recorded: %+v", metrics.calls)
	}
	if metrics.worlds != report.Worlds || report.Worlds != 27*4 {
		t.Fatalf("worlds %d, report %d", metrics.worlds, report.Worlds)
	}
	if errs := tracer.ended["run_inference"]; len(errs) != 1 || errs[0] != nil {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
	if errs := tracer.ended["delete_person"]; len(errs) != 1 || errs[0] == nil {
		t.Fatalf("failed span not recorded: %+v", tracer.ended)
	}
	if logger.count("error") != 1 || logger.count("info") == 0 {
		t.Fatalf("unexpected log lines %+v", logger.lines)
	}
}

func TestReadOperationsAreNotAudited(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(nil, WithAuditRecorder(audit))
	ctx := context.Background()
	_, _ = svc.Report(ctx, "nope")
	_, _ = svc.ListReports(ctx, "")
	_, _ = svc.Pedigree(ctx, "nope")
	if len(audit.entries) != 0 {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
}

func TestWarningsAreLogged(t *testing.T) {
	engine := NewDefaultRulesEngine()
	engine.Register(warnRule{})
	logger := &captureLogger{}
	svc := NewInMemoryService(engine, WithLogger(logger))
	_, res, err := svc.CreateFamily(context.Background(), Family{Name: "f"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Violations) != 1 || logger.count("warn") != 1 {
		t.Fatalf("expected one logged warning, got %+v / %+v", res.Violations, logger.lines)
	}
}

func TestInstallPlugin(t *testing.T) {
	svc := NewInMemoryService(nil)
	if _, err := svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin error")
	}
	meta, err := svc.InstallPlugin(rulePlugin{name: "zeta", rules: []Rule{warnRule{}}})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(meta.Rules) != 1 || meta.Rules[0] != "warn_everything" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, err := svc.InstallPlugin(rulePlugin{name: "zeta"}); err == nil {
		t.Fatalf("expected duplicate plugin error")
	}
	if _, err := svc.InstallPlugin(rulePlugin{name: "broken", err: errors.New("boom")}); err == nil {
		t.Fatalf("expected register error")
	}
	if _, err := svc.InstallPlugin(rulePlugin{name: "alpha"}); err != nil {
		t.Fatalf("install alpha: %v", err)
	}
	plugins := svc.RegisteredPlugins()
	if len(plugins) != 2 || plugins[0].Name != "alpha" || plugins[1].Name != "zeta" {
		t.Fatalf("unexpected plugins %+v", plugins)
	}

	_, res, err := svc.CreateFamily(context.Background(), Family{Name: "f"})
	if err != nil || len(res.Violations) != 1 {
		t.Fatalf("plugin rule not evaluated: %v %+v", err, res)
	}
}

type bareStore struct {
	PersistentStore
}

func TestInstallPluginRequiresEngine(t *testing.T) {
	svc := NewService(bareStore{PersistentStore: NewMemoryStore(NewRulesEngine())})
	if _, err := svc.InstallPlugin(rulePlugin{name: "p"}); err == nil {
		t.Fatalf("expected error for store without rules engine")
	}
}

func TestConcurrentInstallAndCreate(t *testing.T) {
	svc := NewInMemoryService(nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.InstallPlugin(rulePlugin{name: fmt.Sprintf("p%d", i)})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = svc.CreateFamily(ctx, Family{Name: fmt.Sprintf("f%d", i)})
		}()
	}
	wg.Wait()
	if len(svc.RegisteredPlugins()) != 8 || len(svc.Store().ListFamilies()) != 8 {
		t.Fatalf("lost concurrent updates")
	}
}

func TestClockFuncDefaultsToNow(t *testing.T) {
	var clock ClockFunc
	before := time.Now().UTC()
	if got := clock.Now(); got.Before(before) || got.Location() != time.UTC {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	svc := NewInMemoryService(nil, nil, WithLogger(nil), WithTracer(nil), WithMetricsRecorder(nil), WithAuditRecorder(nil), WithClock(nil))
	if _, _, err := svc.CreateFamily(context.Background(), Family{Name: "f"}); err != nil {
		t.Fatalf("create: %v", err)
	}
}
