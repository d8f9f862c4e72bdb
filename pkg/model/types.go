package model

// FieldName identifies a form field. Using a named type instead of bare
// strings keeps rule, step and enrichment declarations from drifting apart.
type FieldName string

// String returns the raw field name.
func (n FieldName) String() string { return string(n) }

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeSelect   FieldType = "select"
	FieldTypeDateTime FieldType = "datetime"
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
	ValidationRuleTaxID     = "taxId"
	ValidationRulePostal    = "postalCode"
	ValidationRuleEmail     = "email"
	ValidationRuleDuration  = "duration"
)

// ValidationRule represents a single validation constraint applied to a field.
// Numeric bounds and length limits encode their threshold in Params["value"]
// while pattern rules keep the expression in Params["pattern"]. Params["message"]
// overrides the catalog message when present.
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Field models an individual input inside a form.
type Field struct {
	Name        FieldName         `json:"name"`
	Type        FieldType         `json:"type"`
	Label       string            `json:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Description string            `json:"description,omitempty"`
	Required    bool              `json:"required"`
	Mask        string            `json:"mask,omitempty"`
	Catalog     string            `json:"catalog,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	FreeText    bool              `json:"freeText,omitempty"`
	Default     any               `json:"default,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return string(f.Name)
}

// FormModel is the field inventory an engine instance works against.
type FormModel struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []Field           `json:"fields"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Field returns the definition registered under name.
func (m FormModel) Field(name FieldName) (Field, bool) {
	for _, field := range m.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Names lists field names in declaration order.
func (m FormModel) Names() []FieldName {
	out := make([]FieldName, 0, len(m.Fields))
	for _, field := range m.Fields {
		out = append(out, field.Name)
	}
	return out
}
