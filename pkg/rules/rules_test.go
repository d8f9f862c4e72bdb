package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func mustExpr(t *testing.T, src string) ExprPredicate {
	t.Helper()
	p, err := Expr(src)
	if err != nil {
		t.Fatalf("Expr(%q): %v", src, err)
	}
	return p
}

func reportRules(t *testing.T) *Set {
	t.Helper()
	set, err := NewSet(
		Rule{
			ID:                "on-site",
			Trigger:           "fl_deslocamento",
			When:              mustExpr(t, `fl_deslocamento == "P"`),
			Affected:          []model.FieldName{"nr_km_ida", "nr_km_volta", "vl_pedagio"},
			OnInactive:        Both,
			RequireWhenActive: true,
		},
		Rule{
			ID:         "plan-tier",
			Trigger:    "tp_plano",
			When:       Equals("tp_plano", "N"),
			Affected:   []model.FieldName{"qt_nomeados", "qt_simultaneos"},
			OnInactive: Both,
		},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestRemoteTravelClearsAndDisablesKmFields(t *testing.T) {
	t.Parallel()

	set := reportRules(t)
	state := model.State{}.WithValues(model.Values{
		"fl_deslocamento": "P",
		"nr_km_ida":       40.0,
		"nr_km_volta":     38.0,
		"vl_pedagio":      12.5,
	})

	onSite, err := set.Evaluate(state)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !onSite.IsEnabled("nr_km_ida") || !onSite.IsRequired("vl_pedagio") {
		t.Fatalf("on-site travel should enable and require km fields")
	}

	remote, err := set.Evaluate(onSite.State.With("fl_deslocamento", "R"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, name := range []model.FieldName{"nr_km_ida", "nr_km_volta", "vl_pedagio"} {
		if remote.IsEnabled(name) {
			t.Fatalf("%s should be disabled", name)
		}
		if remote.IsRequired(name) {
			t.Fatalf("%s should not be required while disabled", name)
		}
		if _, ok := remote.State.Get(name); ok {
			t.Fatalf("%s should be cleared", name)
		}
	}
	if diff := cmp.Diff([]model.FieldName{"nr_km_ida", "nr_km_volta", "vl_pedagio"}, remote.Cleared); diff != "" {
		t.Fatalf("cleared mismatch (-want +got):\n%s", diff)
	}

	back, err := set.Evaluate(remote.State.With("fl_deslocamento", "P"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, name := range []model.FieldName{"nr_km_ida", "nr_km_volta", "vl_pedagio"} {
		if !back.IsEnabled(name) || !back.IsRequired(name) {
			t.Fatalf("%s should be enabled and required again", name)
		}
		if !back.State.IsEmpty(name) {
			t.Fatalf("%s should come back empty", name)
		}
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	set := reportRules(t)
	state := model.State{}.WithValues(model.Values{
		"fl_deslocamento": "R",
		"nr_km_ida":       1.0,
		"tp_plano":        "B",
		"qt_nomeados":     5.0,
	})
	first, err := set.Evaluate(state)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := set.Evaluate(first.State)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !first.State.Equal(second.State) {
		t.Fatalf("second pass changed state")
	}
	if diff := cmp.Diff(first.Enabled, second.Enabled); diff != "" {
		t.Fatalf("enabled mismatch (-want +got):\n%s", diff)
	}
	if len(second.Cleared) != 0 {
		t.Fatalf("second pass should clear nothing, got %v", second.Cleared)
	}
}

func TestEvaluateIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := Rule{ID: "a", Trigger: "x", When: Truthy("x"), Affected: []model.FieldName{"x1"}, OnInactive: Clear}
	b := Rule{ID: "b", Trigger: "y", When: Truthy("y"), Affected: []model.FieldName{"y1", "x1"}, OnInactive: Disable}

	forward, err := NewSet(a, b)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	backward, err := NewSet(b, a)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	state := model.State{}.WithValues(model.Values{"x": true, "y": false, "x1": "v", "y1": "w"})
	r1, _ := forward.Evaluate(state)
	r2, _ := backward.Evaluate(state)
	if !r1.State.Equal(r2.State) {
		t.Fatalf("state depends on rule order")
	}
	if diff := cmp.Diff(r1.Enabled, r2.Enabled); diff != "" {
		t.Fatalf("enabled depends on rule order (-fwd +bwd):\n%s", diff)
	}
	if r1.IsEnabled("x1") {
		t.Fatalf("x1 must be disabled while any governing rule disables it")
	}
	if r1.State.String("y1") != "w" {
		t.Fatalf("disable-only rule must not clear values")
	}
}

func TestUngovernedFieldsAreEnabled(t *testing.T) {
	t.Parallel()

	set := reportRules(t)
	result, err := set.Evaluate(model.State{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !result.IsEnabled("ds_observacao") {
		t.Fatalf("ungoverned field should be enabled")
	}
}

func TestNewSetRejectsChainsAndCycles(t *testing.T) {
	t.Parallel()

	cases := map[string][]Rule{
		"chain": {
			{ID: "a", Trigger: "x", When: Truthy("x"), Affected: []model.FieldName{"y"}},
			{ID: "b", Trigger: "y", When: Truthy("y"), Affected: []model.FieldName{"z"}},
		},
		"cycle": {
			{ID: "a", Trigger: "x", When: Truthy("x"), Affected: []model.FieldName{"y"}},
			{ID: "b", Trigger: "y", When: Truthy("y"), Affected: []model.FieldName{"x"}},
		},
		"self": {
			{ID: "a", Trigger: "x", When: Truthy("x"), Affected: []model.FieldName{"x"}},
		},
		"expression reads affected": {
			{ID: "a", Trigger: "x", When: mustExpr(t, `x && z`), Affected: []model.FieldName{"y"}},
			{ID: "b", Trigger: "w", When: Truthy("w"), Affected: []model.FieldName{"z"}},
		},
		"no trigger":   {{ID: "a", When: Truthy("x"), Affected: []model.FieldName{"y"}}},
		"no affected":  {{ID: "a", Trigger: "x", When: Truthy("x")}},
		"no predicate": {{ID: "a", Trigger: "x", Affected: []model.FieldName{"y"}}},
		"bad policy":   {{ID: "a", Trigger: "x", When: Truthy("x"), Affected: []model.FieldName{"y"}, OnInactive: "hide"}},
	}

	for name, rules := range cases {
		_, err := NewSet(rules...)
		var cfgErr *model.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}
