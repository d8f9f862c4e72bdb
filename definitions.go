package formflow

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/goliatone/go-formflow/pkg/schema"
)

//go:embed definitions/*.yaml definitions/*.json definitions/*.jsonc
var embeddedDefinitions embed.FS

// DefinitionsFS exposes the built-in definition files so callers can copy
// or extend them.
func DefinitionsFS() fs.FS {
	sub, err := fs.Sub(embeddedDefinitions, "definitions")
	if err != nil {
		return embeddedDefinitions
	}
	return sub
}

var (
	builtinOnce  sync.Once
	builtinStore *schema.Store
	builtinErr   error
)

// Builtins returns the store of built-in definitions.
func Builtins() (*schema.Store, error) {
	builtinOnce.Do(func() {
		builtinStore, builtinErr = schema.LoadFS(DefinitionsFS())
	})
	return builtinStore, builtinErr
}

// Builtin returns one built-in definition by id.
func Builtin(id string) (schema.Definition, error) {
	store, err := Builtins()
	if err != nil {
		return schema.Definition{}, err
	}
	def, ok := store.Definition(id)
	if !ok {
		return schema.Definition{}, fmt.Errorf("%w: %q", ErrUnknownDefinition, id)
	}
	return def, nil
}
