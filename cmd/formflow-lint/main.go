package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/openapi"
	"github.com/goliatone/go-formflow/pkg/schema"
)

type violation struct {
	file     string
	location string
	message  string
}

var stubLookup = enrich.LookupFunc(func(context.Context, string) (model.Values, error) {
	return nil, enrich.ErrNotFound
})

func main() {
	violations, err := run(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "formflow-lint: %v\n", err)
		os.Exit(2)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "%s: %s -> %s\n", v.file, v.location, v.message)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) ([]violation, error) {
	var (
		contract  string
		operation string
		scaffold  bool
		builtins  bool
	)
	flagSet := pflag.NewFlagSet("formflow-lint", pflag.ContinueOnError)
	flagSet.StringVar(&contract, "openapi", "", "OpenAPI document the definitions submit to")
	flagSet.StringVar(&operation, "operation", "", "operation id to check or scaffold (default: the definition id)")
	flagSet.BoolVar(&scaffold, "scaffold", false, "print a definition scaffolded from --operation and exit")
	flagSet.BoolVar(&builtins, "builtins", true, "lint the built-in definitions too")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [dirs...]\n\nCheck form definitions compile into engines.\n\n", filepath.Base(os.Args[0]))
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	ctx := context.Background()
	var doc *openapi.Document
	if contract != "" {
		raw, err := os.ReadFile(contract)
		if err != nil {
			return nil, fmt.Errorf("read contract: %w", err)
		}
		if doc, err = openapi.Load(ctx, raw); err != nil {
			return nil, err
		}
	}

	if scaffold {
		if doc == nil || operation == "" {
			return nil, errors.New("--scaffold needs --openapi and --operation")
		}
		op, err := doc.Operation(operation)
		if err != nil {
			return nil, err
		}
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(op.Scaffold()); err != nil {
			return nil, err
		}
		return nil, enc.Close()
	}

	var defs []schema.Definition
	if builtins {
		store, err := formflow.Builtins()
		if err != nil {
			return nil, fmt.Errorf("builtins: %w", err)
		}
		defs = append(defs, definitions(store)...)
	}
	for _, dir := range flagSet.Args() {
		store, err := schema.LoadFS(os.DirFS(dir))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", dir, err)
		}
		defs = append(defs, definitions(store)...)
	}

	var result []violation
	for _, def := range defs {
		result = append(result, lintDefinition(def)...)
		if doc != nil {
			result = append(result, lintContract(doc, def, operation)...)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].file == result[j].file {
			if result[i].location == result[j].location {
				return result[i].message < result[j].message
			}
			return result[i].location < result[j].location
		}
		return result[i].file < result[j].file
	})
	return result, nil
}

func definitions(store *schema.Store) []schema.Definition {
	out := make([]schema.Definition, 0, len(store.IDs()))
	for _, id := range store.IDs() {
		def, _ := store.Definition(id)
		out = append(out, def)
	}
	return out
}

func lintDefinition(def schema.Definition) []violation {
	opts := make([]formflow.Option, 0, len(def.Enrichments))
	for _, enrichment := range def.Enrichments {
		opts = append(opts, formflow.WithLookup(enrichment.Lookup, stubLookup))
	}
	eng, err := formflow.New(def, opts...)
	if err != nil {
		return []violation{{file: sourceOf(def), location: def.ID, message: err.Error()}}
	}
	eng.Close()
	return nil
}

// lintContract reports fields the definition sends that the operation body
// does not declare, and required body fields the definition never collects.
func lintContract(doc *openapi.Document, def schema.Definition, operationID string) []violation {
	if operationID == "" {
		operationID = def.ID
	}
	op, err := doc.Operation(operationID)
	if errors.Is(err, openapi.ErrOperationNotFound) {
		return nil
	}
	if err != nil {
		return []violation{{file: sourceOf(def), location: def.ID, message: err.Error()}}
	}

	declared := make(map[string]schema.FieldDef, len(op.Fields))
	for _, field := range op.Fields {
		declared[field.Name] = field
	}
	collected := make(map[string]struct{}, len(def.Fields))
	var result []violation
	for _, field := range def.Fields {
		collected[field.Name] = struct{}{}
		if _, ok := declared[field.Name]; !ok {
			result = append(result, violation{
				file:     sourceOf(def),
				location: def.ID + " > " + field.Name,
				message:  fmt.Sprintf("not declared by operation %s", op.ID),
			})
		}
	}
	for name := range def.Hidden {
		collected[name] = struct{}{}
	}
	for _, field := range op.Fields {
		if _, ok := collected[field.Name]; !ok && field.Required {
			result = append(result, violation{
				file:     sourceOf(def),
				location: def.ID + " > " + field.Name,
				message:  fmt.Sprintf("required by operation %s but never collected", op.ID),
			})
		}
	}
	return result
}

func sourceOf(def schema.Definition) string {
	if def.Source == "" {
		return "<builtin>"
	}
	return def.Source
}
