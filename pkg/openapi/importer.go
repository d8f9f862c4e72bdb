package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const extensionNamespace = "x-formflow"

var (
	// ErrOperationNotFound is returned for unknown operation ids.
	ErrOperationNotFound = errors.New("openapi: operation not found")
	// ErrNoRequestBody is returned when an operation accepts no object body.
	ErrNoRequestBody = errors.New("openapi: operation has no object request body")
)

// Operation is an API operation and the fields of its request body.
type Operation struct {
	ID      string
	Method  string
	Path    string
	Summary string
	Fields  []schema.FieldDef
}

// FieldNames lists the imported field names.
func (o Operation) FieldNames() []string {
	out := make([]string, 0, len(o.Fields))
	for _, field := range o.Fields {
		out = append(out, field.Name)
	}
	return out
}

// Document is a loaded OpenAPI document.
type Document struct {
	spec *openapi3.T
}

// Load parses an OpenAPI 3 document. External references are not followed.
func Load(ctx context.Context, raw []byte) (*Document, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if err := spec.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return &Document{spec: spec}, nil
}

// OperationIDs lists the operations in the document. Operations without an id
// are named "<method>:<path>".
func (d *Document) OperationIDs() []string {
	var out []string
	d.walk(func(id, _, _ string, _ *openapi3.Operation) {
		out = append(out, id)
	})
	sort.Strings(out)
	return out
}

// Operation imports the request body fields of id.
func (d *Document) Operation(id string) (Operation, error) {
	var (
		found Operation
		ok    bool
		err   error
	)
	d.walk(func(opID, method, path string, op *openapi3.Operation) {
		if ok || opID != id {
			return
		}
		ok = true
		found = Operation{ID: opID, Method: method, Path: path, Summary: op.Summary}
		found.Fields, err = requestFields(op.RequestBody)
	})
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err != nil {
		return Operation{}, fmt.Errorf("%s: %w", id, err)
	}
	return found, nil
}

// Scaffold builds a single-step definition from an operation.
func (o Operation) Scaffold() schema.Definition {
	title := o.Summary
	if title == "" {
		title = o.ID
	}
	return schema.Definition{
		ID:     o.ID,
		Title:  title,
		Fields: append([]schema.FieldDef(nil), o.Fields...),
	}
}

func (d *Document) walk(fn func(id, method, path string, op *openapi3.Operation)) {
	if d == nil || d.spec == nil || d.spec.Paths == nil {
		return
	}
	for path, item := range d.spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			fn(id, strings.ToUpper(method), path, op)
		}
	}
}

func requestFields(body *openapi3.RequestBodyRef) ([]schema.FieldDef, error) {
	if body == nil || body.Value == nil {
		return nil, ErrNoRequestBody
	}
	content := body.Value.Content
	var ref *openapi3.SchemaRef
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := content[mediaType]; ok && mt != nil {
			ref = mt.Schema
			break
		}
	}
	if ref == nil || ref.Value == nil || len(ref.Value.Properties) == 0 {
		return nil, ErrNoRequestBody
	}

	src := ref.Value
	required := make(map[string]struct{}, len(src.Required))
	for _, name := range src.Required {
		required[name] = struct{}{}
	}
	names := make([]string, 0, len(src.Properties))
	for name := range src.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]schema.FieldDef, 0, len(names))
	for _, name := range names {
		prop := src.Properties[name]
		if prop == nil || prop.Value == nil {
			continue
		}
		field, ok := convertProperty(name, prop.Value)
		if !ok {
			continue
		}
		if _, req := required[name]; req {
			field.Required = true
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// convertProperty maps a scalar property. Objects and arrays have no flat
// field equivalent and are skipped.
func convertProperty(name string, src *openapi3.Schema) (schema.FieldDef, bool) {
	field := schema.FieldDef{
		Name:        name,
		Label:       src.Title,
		Description: src.Description,
		Default:     src.Default,
	}

	switch {
	case src.Type == nil:
		field.Type = string(model.FieldTypeString)
	case src.Type.Is("integer"), src.Type.Is("number"):
		field.Type = string(model.FieldTypeNumber)
	case src.Type.Is("boolean"):
		field.Type = string(model.FieldTypeBoolean)
	case src.Type.Is("string"):
		field.Type = string(model.FieldTypeString)
		if src.Format == "date-time" || src.Format == "date" {
			field.Type = string(model.FieldTypeDateTime)
		}
	default:
		return schema.FieldDef{}, false
	}

	if len(src.Enum) > 0 {
		field.Type = string(model.FieldTypeSelect)
		for _, value := range src.Enum {
			text := fmt.Sprint(value)
			field.Options = append(field.Options, model.Option{Value: text, Label: text})
		}
	}

	if src.Min != nil {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRuleMin, Value: formatFloat(*src.Min)})
	}
	if src.Max != nil {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRuleMax, Value: formatFloat(*src.Max)})
	}
	if src.MinLength > 0 {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRuleMinLength, Value: strconv.FormatUint(src.MinLength, 10)})
	}
	if src.MaxLength != nil {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRuleMaxLength, Value: strconv.FormatUint(*src.MaxLength, 10)})
	}
	if src.Pattern != "" {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRulePattern, Pattern: src.Pattern})
	}
	if src.Format == "email" {
		field.Validations = append(field.Validations, schema.ValidationDef{Kind: model.ValidationRuleEmail})
	}

	applyExtension(&field, src.Extensions)
	return field, true
}

func applyExtension(field *schema.FieldDef, raw map[string]any) {
	ext, ok := raw[extensionNamespace].(map[string]any)
	if !ok {
		return
	}
	if label, ok := ext["label"].(string); ok && label != "" {
		field.Label = label
	}
	if maskKind, ok := ext["mask"].(string); ok {
		field.Mask = maskKind
	}
	if catalog, ok := ext["catalog"].(string); ok && catalog != "" {
		field.Catalog = catalog
		field.Type = string(model.FieldTypeSelect)
		field.Options = nil
	}
	if freeText, ok := ext["freeText"].(bool); ok {
		field.FreeText = freeText
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
