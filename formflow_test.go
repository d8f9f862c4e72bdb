package formflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-formflow/components/postalcodes"
	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/payload"
	"github.com/goliatone/go-formflow/pkg/wizard"
	"github.com/google/go-cmp/cmp"
)

var noAddress = enrich.LookupFunc(func(context.Context, string) (model.Values, error) {
	return nil, enrich.ErrNotFound
})

func TestBuiltinsLoad(t *testing.T) {
	t.Parallel()

	store, err := Builtins()
	if err != nil {
		t.Fatalf("Builtins: %v", err)
	}
	want := []string{"client", "contact", "service_report", "user"}
	if diff := cmp.Diff(want, store.IDs()); diff != "" {
		t.Fatalf("builtin ids mismatch (-want +got):\n%s", diff)
	}
}

func TestEveryBuiltinBuilds(t *testing.T) {
	t.Parallel()

	store, err := Builtins()
	if err != nil {
		t.Fatalf("Builtins: %v", err)
	}
	for _, id := range store.IDs() {
		def, _ := store.Definition(id)
		eng, err := New(def, WithLookup("postal", noAddress))
		if err != nil {
			t.Fatalf("%s: New: %v", id, err)
		}
		if got := eng.Form().ID; got != id {
			t.Fatalf("%s: form id %q", id, got)
		}
		if eng.Snapshot().StepCount != len(def.StepFields()) {
			t.Fatalf("%s: step count mismatch", id)
		}
	}
}

func TestBuiltinUnknown(t *testing.T) {
	t.Parallel()

	if _, err := Builtin("invoice"); !errors.Is(err, ErrUnknownDefinition) {
		t.Fatalf("expected ErrUnknownDefinition, got %v", err)
	}
}

func TestNewRejectsMissingLookup(t *testing.T) {
	t.Parallel()

	def, err := Builtin("client")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	_, err = New(def)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDefinitionMessagesOverrideCatalog(t *testing.T) {
	t.Parallel()

	def, err := Builtin("service_report")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	eng, err := New(def)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	edits := []struct {
		name model.FieldName
		raw  string
	}{
		{"dt_entrada", "2024-01-01T10:00"},
		{"dt_saida", "2024-01-01T09:00"},
	}
	for _, edit := range edits {
		if err := eng.Change(edit.name, edit.raw); err != nil {
			t.Fatalf("Change(%s): %v", edit.name, err)
		}
	}
	if got := eng.Errors()["dt_saida"]; got != "Exit must be after entry" {
		t.Fatalf("expected overridden ordering message, got %q", got)
	}
	if got := messages.Default().Message("en", messages.KeyOrdering, nil); got != "exit must be after entry" {
		t.Fatalf("default catalog must stay untouched, got %q", got)
	}
}

func TestClientAddressFromDirectory(t *testing.T) {
	t.Parallel()

	def, err := Builtin("client")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	dir, err := postalcodes.DefaultDirectory()
	if err != nil {
		t.Fatalf("DefaultDirectory: %v", err)
	}
	fake := clock.Fake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	eng, err := New(def,
		WithLookup("postal", postalcodes.DirectoryLookup{
			Directory: dir,
			Fields: postalcodes.FieldMap{
				Street:   "ds_endereco",
				District: "ds_bairro",
				City:     "ds_cidade",
				State:    "sg_uf",
			},
		}),
		WithEngineOptions(engine.WithClock(fake)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := eng.Change("nr_cep", "01310-100"); err != nil {
		t.Fatalf("Change: %v", err)
	}
	fake.Advance(500 * time.Millisecond)

	state := eng.State()
	got := map[string]string{
		"ds_endereco": state.String("ds_endereco"),
		"ds_bairro":   state.String("ds_bairro"),
		"ds_cidade":   state.String("ds_cidade"),
		"sg_uf":       state.String("sg_uf"),
	}
	want := map[string]string{
		"ds_endereco": "Avenida Paulista",
		"ds_bairro":   "Bela Vista",
		"ds_cidade":   "São Paulo",
		"sg_uf":       "SP",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("address mismatch (-want +got):\n%s", diff)
	}
}

type capture struct {
	mu       sync.Mutex
	payloads []wizard.Payload
}

func (c *capture) Submit(_ context.Context, p wizard.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return nil
}

func TestContactPayloadCarriesHiddenFields(t *testing.T) {
	t.Parallel()

	def, err := Builtin("contact")
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	service := &capture{}
	eng, err := New(def,
		WithSubmitter(service),
		WithHiddenFields(payload.CSRFToken("_csrf", "tok")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Change("nm_contato", "Ana"); err != nil {
		t.Fatalf("Change: %v", err)
	}
	if err := eng.Change("ds_email", "ana@example.com"); err != nil {
		t.Fatalf("Change: %v", err)
	}
	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v (errors %v)", err, eng.Errors())
	}

	want := []wizard.Payload{{
		"nm_contato": "Ana",
		"ds_email":   "ana@example.com",
		"_version":   "1",
		"_csrf":      "tok",
	}}
	if diff := cmp.Diff(want, service.payloads); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}
