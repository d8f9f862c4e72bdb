package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/derive"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/mask"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/rules"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

var kmFields = []model.FieldName{"nr_km_ida", "nr_km_volta", "vl_pedagio"}

func reportForm() model.FormModel {
	return model.FormModel{
		ID:    "service_report",
		Title: "Service report",
		Fields: []model.Field{
			{Name: "cliente", Type: model.FieldTypeString, Label: "Client", Required: true},
			{Name: "cep", Type: model.FieldTypeString, Label: "Postal code", Mask: string(mask.KindPostalCode)},
			{Name: "rua", Type: model.FieldTypeString, Label: "Street"},
			{Name: "cidade", Type: model.FieldTypeString, Label: "City", Required: true},
			{Name: "fl_deslocamento", Type: model.FieldTypeSelect, Label: "Travel", Required: true, Options: []model.Option{
				{Value: "R", Label: "Remote"},
				{Value: "P", Label: "On site"},
			}},
			{Name: "nr_km_ida", Type: model.FieldTypeNumber, Label: "Km out"},
			{Name: "nr_km_volta", Type: model.FieldTypeNumber, Label: "Km back"},
			{Name: "nr_km_total", Type: model.FieldTypeNumber, Label: "Km total"},
			{Name: "vl_pedagio", Type: model.FieldTypeNumber, Label: "Toll"},
			{Name: "dt_entrada", Type: model.FieldTypeDateTime, Label: "Entry"},
			{Name: "dt_saida", Type: model.FieldTypeDateTime, Label: "Exit"},
			{Name: "hr_total", Type: model.FieldTypeString, Label: "Hours", Mask: string(mask.KindDuration)},
		},
	}
}

type recordingService struct {
	mu       sync.Mutex
	payloads []wizard.Payload
	err      error
}

func (s *recordingService) Submit(_ context.Context, payload wizard.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return s.err
}

func (s *recordingService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

type fixture struct {
	engine  *Engine
	clock   *clock.FakeClock
	service *recordingService
	lookups []string
	events  []Event
	mu      sync.Mutex
}

func (f *fixture) recorded() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func onSiteRules(t *testing.T) *rules.Set {
	t.Helper()

	travel, err := rules.Expr(`fl_deslocamento == "P"`)
	if err != nil {
		t.Fatalf("Expr: %v", err)
	}
	set, err := rules.NewSet(rules.Rule{
		ID:                "on-site",
		Trigger:           "fl_deslocamento",
		When:              travel,
		Affected:          kmFields,
		OnInactive:        rules.Both,
		RequireWhenActive: true,
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	set := onSiteRules(t)
	calc, err := derive.New(
		[]derive.Interval{{Entry: "dt_entrada", Exit: "dt_saida", Duration: "hr_total"}},
		[]derive.Distance{{Outbound: "nr_km_ida", Return: "nr_km_volta", Total: "nr_km_total"}},
	)
	if err != nil {
		t.Fatalf("derive.New: %v", err)
	}

	f := &fixture{
		clock:   clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		service: &recordingService{},
	}
	lookup := enrich.LookupFunc(func(_ context.Context, key string) (model.Values, error) {
		f.mu.Lock()
		f.lookups = append(f.lookups, key)
		f.mu.Unlock()
		if key != "01310100" {
			return nil, enrich.ErrNotFound
		}
		return model.Values{"rua": "Avenida Paulista", "cidade": "São Paulo"}, nil
	})

	eng, err := New(Config{
		Form:       reportForm(),
		Rules:      set,
		Calculator: calc,
		Enrichments: []enrich.Config{{
			Trigger:   "cep",
			KeyLength: 8,
			Lookup:    lookup,
			Policy:    enrich.FillEmptyOnly,
			Targets:   []model.FieldName{"rua", "cidade"},
		}},
		Steps: []wizard.Step{
			{ID: "client", Title: "Client", Fields: []model.FieldName{"cliente", "cep", "rua", "cidade"}},
			{ID: "visit", Title: "Visit", Fields: []model.FieldName{
				"fl_deslocamento", "nr_km_ida", "nr_km_volta", "nr_km_total", "vl_pedagio", "dt_entrada", "dt_saida", "hr_total",
			}},
		},
	},
		WithClock(f.clock),
		WithSubmitter(f.service),
		WithListener(func(event Event) {
			f.mu.Lock()
			f.events = append(f.events, event)
			f.mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.engine = eng
	return f
}

func mustChange(t *testing.T, eng *Engine, name model.FieldName, raw string) {
	t.Helper()
	if err := eng.Change(name, raw); err != nil {
		t.Fatalf("Change(%s, %q): %v", name, raw, err)
	}
}

func fillClientStep(t *testing.T, eng *Engine) {
	t.Helper()
	mustChange(t, eng, "cliente", "ACME")
	mustChange(t, eng, "cidade", "Campinas")
	if !eng.Next() {
		t.Fatalf("client step should be valid, errors: %v", eng.Errors())
	}
}

func TestRemoteTravelClearsAndDisablesKmFields(t *testing.T) {
	t.Parallel()

	eng := newFixture(t).engine
	mustChange(t, eng, "fl_deslocamento", "P")
	mustChange(t, eng, "nr_km_ida", "40")
	mustChange(t, eng, "nr_km_volta", "38")
	mustChange(t, eng, "vl_pedagio", "12,50")

	if got, _ := eng.State().Number("nr_km_total"); got != 2 {
		t.Fatalf("expected derived km total 2, got %v", got)
	}

	mustChange(t, eng, "fl_deslocamento", "R")
	snap := eng.Snapshot()
	for _, name := range kmFields {
		if snap.Enabled[name] {
			t.Fatalf("%s should be disabled for remote travel", name)
		}
		if !snap.State.IsEmpty(name) {
			t.Fatalf("%s should be cleared, got %v", name, snap.State.String(name))
		}
	}
	if _, ok := snap.State.Get("nr_km_total"); ok {
		t.Fatalf("km total should be undefined once its inputs are cleared")
	}
	if err := eng.Change("nr_km_ida", "10"); !errors.Is(err, ErrFieldDisabled) {
		t.Fatalf("expected ErrFieldDisabled, got %v", err)
	}

	mustChange(t, eng, "fl_deslocamento", "P")
	snap = eng.Snapshot()
	for _, name := range kmFields {
		if !snap.Enabled[name] || !snap.Required[name] {
			t.Fatalf("%s should be enabled and required again", name)
		}
		if !snap.State.IsEmpty(name) {
			t.Fatalf("%s should come back empty", name)
		}
	}
}

func TestIntervalDerivesDurationAndReportsOrdering(t *testing.T) {
	t.Parallel()

	eng := newFixture(t).engine
	mustChange(t, eng, "dt_entrada", "2024-01-01T10:00")
	mustChange(t, eng, "dt_saida", "2024-01-01T12:30")

	if got := eng.Display("hr_total"); got != "02:30:00" {
		t.Fatalf("expected 02:30:00, got %q", got)
	}

	mustChange(t, eng, "dt_saida", "2024-01-01T09:00")
	if got := eng.Errors()["dt_saida"]; got != "exit must be after entry" {
		t.Fatalf("expected ordering error, got %q", got)
	}
	if got := eng.Display("hr_total"); got != "02:30:00" {
		t.Fatalf("duration should keep the last good value, got %q", got)
	}

	mustChange(t, eng, "dt_saida", "2024-01-01T11:15")
	if eng.Errors().Has("dt_saida") {
		t.Fatalf("ordering error should clear once fixed")
	}
	if got := eng.Display("hr_total"); got != "01:15:00" {
		t.Fatalf("expected 01:15:00, got %q", got)
	}
}

func TestRejectedMaskEditLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	eng := newFixture(t).engine
	mustChange(t, eng, "hr_total", "02:1")

	err := eng.Change("hr_total", "02:1x")
	if !errors.Is(err, mask.ErrRejected) {
		t.Fatalf("expected mask.ErrRejected, got %v", err)
	}
	if got := eng.State().String("hr_total"); got != "02:1" {
		t.Fatalf("state should be unchanged, got %q", got)
	}
}

func TestChangeUnknownField(t *testing.T) {
	t.Parallel()

	eng := newFixture(t).engine
	if err := eng.Change("nope", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestEnrichmentFillsEmptyTargetsOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.engine
	mustChange(t, eng, "rua", "Rua X")
	mustChange(t, eng, "cep", "01310-100")

	if got := eng.Snapshot().Enrichment["cep"].Phase; got != enrich.PhaseScheduled {
		t.Fatalf("expected scheduled lookup, got %s", got)
	}
	f.clock.Advance(499 * time.Millisecond)
	if len(f.lookups) != 0 {
		t.Fatalf("lookup fired before the debounce elapsed")
	}
	f.clock.Advance(time.Millisecond)

	state := eng.State()
	if got := state.String("rua"); got != "Rua X" {
		t.Fatalf("user-entered street should be kept, got %q", got)
	}
	if got := state.String("cidade"); got != "São Paulo" {
		t.Fatalf("expected city from lookup, got %q", got)
	}
	if got := eng.Display("cep"); got != "01310-100" {
		t.Fatalf("expected masked display, got %q", got)
	}
	if got := eng.Snapshot().Enrichment["cep"].Phase; got != enrich.PhaseApplied {
		t.Fatalf("expected applied, got %s", got)
	}

	var applied []model.FieldName
	for _, event := range f.recorded() {
		if event.Kind == EventEnrichmentApplied {
			applied = event.Fields
		}
	}
	if diff := cmp.Diff([]model.FieldName{"cidade"}, applied); diff != "" {
		t.Fatalf("applied fields mismatch (-want +got):\n%s", diff)
	}
}

func TestEnrichmentEditDuringDebounceCancelsLookup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.engine
	mustChange(t, eng, "cep", "01310100")
	f.clock.Advance(200 * time.Millisecond)
	mustChange(t, eng, "cep", "0131010")
	f.clock.Advance(time.Second)

	if len(f.lookups) != 0 {
		t.Fatalf("expected no lookup, got %v", f.lookups)
	}
	if !eng.State().IsEmpty("cidade") {
		t.Fatalf("cidade should stay empty")
	}
}

func TestNextReportsErrorsAndEditClearsOnlyThatField(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.engine
	if eng.Next() {
		t.Fatalf("empty client step must not advance")
	}
	want := model.FieldErrors{"cliente": "Client is required", "cidade": "City is required"}
	if diff := cmp.Diff(want, eng.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	mustChange(t, eng, "cliente", "ACME")
	if diff := cmp.Diff(model.FieldErrors{"cidade": "City is required"}, eng.Errors()); diff != "" {
		t.Fatalf("only the edited field should be cleared (-want +got):\n%s", diff)
	}

	mustChange(t, eng, "cidade", "Campinas")
	if !eng.Next() {
		t.Fatalf("expected to advance, errors: %v", eng.Errors())
	}
	var steps []string
	for _, event := range f.recorded() {
		if event.Kind == EventStepChanged {
			steps = append(steps, event.StepID)
		}
	}
	if diff := cmp.Diff([]string{"visit"}, steps); diff != "" {
		t.Fatalf("step events mismatch (-want +got):\n%s", diff)
	}
	if !eng.Previous() || eng.Snapshot().StepIndex != 0 {
		t.Fatalf("expected to move back to the first step")
	}
}

func TestSubmitBeforeTerminalStepDoesNotCallService(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.engine.Submit(context.Background())
	if !errors.Is(err, wizard.ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}
	if f.service.calls() != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestSubmitSendsEnabledFieldsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.engine
	fillClientStep(t, eng)
	mustChange(t, eng, "fl_deslocamento", "R")
	mustChange(t, eng, "dt_entrada", "2024-01-01T10:00")
	mustChange(t, eng, "dt_saida", "2024-01-01T12:30")

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f.service.calls() != 1 {
		t.Fatalf("expected one submission, got %d", f.service.calls())
	}
	want := wizard.Payload{
		"cliente":         "ACME",
		"cidade":          "Campinas",
		"fl_deslocamento": "R",
		"dt_entrada":      "2024-01-01T10:00",
		"dt_saida":        "2024-01-01T12:30",
		"hr_total":        "02:30:00",
	}
	if diff := cmp.Diff(want, f.service.payloads[0]); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	snap := eng.Snapshot()
	if !snap.Closed || snap.Status != wizard.StatusSubmitted {
		t.Fatalf("session should be closed after success")
	}
	if snap.Notification == nil || snap.Notification.Kind != wizard.NotificationSuccess {
		t.Fatalf("expected success notification, got %+v", snap.Notification)
	}
	if err := eng.Submit(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := eng.Change("cliente", "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on change, got %v", err)
	}
}

func TestSubmitFailureKeepsSessionRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.service.err = errors.New("boom")
	eng := f.engine
	fillClientStep(t, eng)
	mustChange(t, eng, "fl_deslocamento", "R")

	err := eng.Submit(context.Background())
	if !errors.Is(err, wizard.ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	snap := eng.Snapshot()
	if snap.Closed || snap.Status != wizard.StatusFailed {
		t.Fatalf("failed submission should leave the session open, got %s", snap.Status)
	}
	if snap.Notification == nil || snap.Notification.Message != "Could not save" {
		t.Fatalf("expected error notification, got %+v", snap.Notification)
	}

	f.service.mu.Lock()
	f.service.err = nil
	f.service.mu.Unlock()
	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.service.calls() != 2 {
		t.Fatalf("expected two attempts, got %d", f.service.calls())
	}
}

func TestSubmitOnSiteRequiresKmFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.engine
	fillClientStep(t, eng)
	mustChange(t, eng, "fl_deslocamento", "P")

	if err := eng.Submit(context.Background()); !errors.Is(err, wizard.ErrStepInvalid) {
		t.Fatalf("expected ErrStepInvalid, got %v", err)
	}
	errs := eng.Errors()
	for _, name := range kmFields {
		if !errs.Has(name) {
			t.Fatalf("expected required error for %s, got %v", name, errs)
		}
	}
	if f.service.calls() != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	t.Parallel()

	eng := newFixture(t).engine
	fillClientStep(t, eng)
	mustChange(t, eng, "fl_deslocamento", "R")

	if err := eng.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := eng.Snapshot()
	if snap.StepIndex != 0 || !snap.State.IsEmpty("cliente") || !snap.Errors.Empty() {
		t.Fatalf("reset should return to a blank first step, got %+v", snap)
	}
}

func TestRuleEditKeepsOtherStepErrors(t *testing.T) {
	t.Parallel()

	eng, err := New(Config{
		Form:  reportForm(),
		Rules: onSiteRules(t),
		Steps: []wizard.Step{
			{ID: "travel", Fields: []model.FieldName{"cliente", "fl_deslocamento", "cep", "rua"}},
			{ID: "details", Fields: []model.FieldName{
				"cidade", "nr_km_ida", "nr_km_volta", "nr_km_total", "vl_pedagio", "dt_entrada", "dt_saida", "hr_total",
			}},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustChange(t, eng, "cliente", "ACME")
	mustChange(t, eng, "fl_deslocamento", "P")
	if !eng.Next() {
		t.Fatalf("travel step should be valid, errors: %v", eng.Errors())
	}
	if eng.Next() {
		t.Fatalf("details step should be invalid")
	}
	if !eng.Previous() {
		t.Fatalf("Previous should move back")
	}

	mustChange(t, eng, "cliente", "ACME Ltda")
	errs := eng.Errors()
	for _, name := range append([]model.FieldName{"cidade"}, kmFields...) {
		if !errs.Has(name) {
			t.Fatalf("unrelated edit cleared %s, errors %v", name, errs)
		}
	}

	mustChange(t, eng, "fl_deslocamento", "R")
	want := model.FieldErrors{"cidade": "City is required"}
	if diff := cmp.Diff(want, eng.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

type gatedService struct {
	entered chan struct{}
	release chan error
}

func (s *gatedService) Submit(ctx context.Context, _ wizard.Payload) error {
	close(s.entered)
	select {
	case err := <-s.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestResetDuringSubmissionKeepsFailure(t *testing.T) {
	t.Parallel()

	service := &gatedService{entered: make(chan struct{}), release: make(chan error)}
	eng, err := New(Config{Form: reportForm()}, WithSubmitter(service))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustChange(t, eng, "cliente", "Acme")
	mustChange(t, eng, "cidade", "Campinas")
	mustChange(t, eng, "fl_deslocamento", "R")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Submit(ctx) }()
	<-service.entered

	if err := eng.Reset(); !errors.Is(err, wizard.ErrSubmitting) {
		t.Fatalf("expected ErrSubmitting, got %v", err)
	}
	service.release <- errors.New("server down")

	if err := <-done; !errors.Is(err, wizard.ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	snap := eng.Snapshot()
	if snap.Closed || snap.Status != wizard.StatusFailed {
		t.Fatalf("failed submission should stay open, closed=%v status=%s", snap.Closed, snap.Status)
	}
	if snap.Notification == nil || snap.Notification.Kind != wizard.NotificationError {
		t.Fatalf("expected error notification, got %+v", snap.Notification)
	}
	if got := snap.State.String("cliente"); got != "Acme" {
		t.Fatalf("state must survive the refused reset, got %q", got)
	}
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	form := reportForm()
	badMask := reportForm()
	badMask.Fields[1].Mask = "iban"

	derivedTrigger, err := rules.NewSet(rules.Rule{
		ID:       "by-total",
		Trigger:  "hr_total",
		When:     rules.Truthy("hr_total"),
		Affected: []model.FieldName{"vl_pedagio"},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	calc, err := derive.New([]derive.Interval{{Entry: "dt_entrada", Exit: "dt_saida", Duration: "hr_total"}}, nil)
	if err != nil {
		t.Fatalf("derive.New: %v", err)
	}
	undeclared, err := rules.NewSet(rules.Rule{
		ID:       "ghost",
		Trigger:  "ghost",
		When:     rules.Truthy("ghost"),
		Affected: []model.FieldName{"rua"},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	cases := map[string]Config{
		"missing id":         {Form: model.FormModel{Fields: form.Fields}},
		"unknown mask":       {Form: badMask},
		"undeclared trigger": {Form: form, Rules: undeclared},
		"derived trigger":    {Form: form, Rules: derivedTrigger, Calculator: calc},
		"unknown step field": {Form: form, Steps: []wizard.Step{{ID: "a", Fields: []model.FieldName{"ghost"}}}},
		"unknown initial":    {Form: form, Initial: model.Values{"ghost": "x"}},
		"enrichment target": {Form: form, Enrichments: []enrich.Config{{
			Trigger:   "cep",
			KeyLength: 8,
			Lookup:    enrich.LookupFunc(func(context.Context, string) (model.Values, error) { return nil, nil }),
			Targets:   []model.FieldName{"ghost"},
		}}},
	}
	for name, cfg := range cases {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New(cfg)
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestInitialValuesAreDerived(t *testing.T) {
	t.Parallel()

	calc, err := derive.New([]derive.Interval{{Entry: "dt_entrada", Exit: "dt_saida", Duration: "hr_total"}}, nil)
	if err != nil {
		t.Fatalf("derive.New: %v", err)
	}
	eng, err := New(Config{
		Form:       reportForm(),
		Calculator: calc,
		Initial: model.Values{
			"dt_entrada": "2024-01-01 08:00",
			"dt_saida":   "2024-01-01 09:45",
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := eng.Display("hr_total"); got != "01:45:00" {
		t.Fatalf("expected 01:45:00, got %q", got)
	}
	if got := eng.Snapshot().StepCount; got != 1 {
		t.Fatalf("expected a single implicit step, got %d", got)
	}
}
