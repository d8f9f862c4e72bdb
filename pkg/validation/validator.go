package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/mask"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
)

// Requirements reports what the rule evaluator decided for a field. A
// rules.Result satisfies it.
type Requirements interface {
	IsEnabled(name model.FieldName) bool
	IsRequired(name model.FieldName) bool
}

type allEnabled struct{}

func (allEnabled) IsEnabled(model.FieldName) bool  { return true }
func (allEnabled) IsRequired(model.FieldName) bool { return false }

// Option configures a Validator.
type Option func(*Validator)

// WithMessages sets the catalog used to render messages.
func WithMessages(catalog *messages.Catalog) Option {
	return func(v *Validator) {
		if catalog != nil {
			v.messages = catalog
		}
	}
}

// WithLocale selects the message locale.
func WithLocale(locale string) Option {
	return func(v *Validator) {
		v.locale = strings.TrimSpace(locale)
	}
}

// WithCatalogs injects the static option catalogs select fields refer to.
func WithCatalogs(catalogs model.Catalogs) Option {
	return func(v *Validator) {
		v.catalogs = catalogs
	}
}

// Validator checks field values against their declarations.
type Validator struct {
	fields   map[model.FieldName]model.Field
	patterns map[model.FieldName][]*regexp.Regexp
	catalogs model.Catalogs
	messages *messages.Catalog
	locale   string
}

// New compiles the validation rules of form. Unknown rule kinds, malformed
// parameters and bad patterns are configuration errors.
func New(form model.FormModel, opts ...Option) (*Validator, error) {
	v := &Validator{
		fields:   make(map[model.FieldName]model.Field, len(form.Fields)),
		patterns: make(map[model.FieldName][]*regexp.Regexp),
		messages: messages.Default(),
		locale:   messages.DefaultLocale,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	for _, field := range form.Fields {
		v.fields[field.Name] = field
		for _, rule := range field.Validations {
			if err := v.compile(field, rule); err != nil {
				return nil, err
			}
		}
		if field.Catalog != "" && v.catalogs != nil {
			if _, ok := v.catalogs[field.Catalog]; !ok {
				return nil, model.Misconfigured("validation", fmt.Sprintf("%s: unknown catalog %q", field.Name, field.Catalog), nil)
			}
		}
	}
	return v, nil
}

func (v *Validator) compile(field model.Field, rule model.ValidationRule) error {
	switch rule.Kind {
	case model.ValidationRuleMin, model.ValidationRuleMax:
		if _, err := strconv.ParseFloat(rule.Params["value"], 64); err != nil {
			return model.Misconfigured("validation", fmt.Sprintf("%s: %s needs a numeric value", field.Name, rule.Kind), err)
		}
	case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
		if _, err := strconv.Atoi(rule.Params["value"]); err != nil {
			return model.Misconfigured("validation", fmt.Sprintf("%s: %s needs an integer value", field.Name, rule.Kind), err)
		}
	case model.ValidationRulePattern:
		re, err := regexp.Compile(rule.Params["pattern"])
		if err != nil {
			return model.Misconfigured("validation", fmt.Sprintf("%s: invalid pattern", field.Name), err)
		}
		v.patterns[field.Name] = append(v.patterns[field.Name], re)
	case model.ValidationRuleTaxID, model.ValidationRulePostal, model.ValidationRuleEmail, model.ValidationRuleDuration:
	default:
		return model.Misconfigured("validation", fmt.Sprintf("%s: unknown rule %q", field.Name, rule.Kind), nil)
	}
	return nil
}

// Validate checks fields against state and returns a fresh error set.
// Disabled fields are skipped; req may be nil.
func (v *Validator) Validate(state model.State, fields []model.FieldName, req Requirements) model.FieldErrors {
	if req == nil {
		req = allEnabled{}
	}
	out := model.FieldErrors{}
	for _, name := range fields {
		if message, ok := v.ValidateField(state, name, req); !ok {
			out[name] = message
		}
	}
	return out
}

// ValidateField checks one field. It returns the message and false when the
// value is invalid.
func (v *Validator) ValidateField(state model.State, name model.FieldName, req Requirements) (string, bool) {
	if req == nil {
		req = allEnabled{}
	}
	if !req.IsEnabled(name) {
		return "", true
	}
	field, known := v.fields[name]
	if !known {
		field = model.Field{Name: name}
	}

	if state.IsEmpty(name) {
		if field.Required || req.IsRequired(name) {
			return v.message(field, messages.KeyRequired, nil, ""), false
		}
		return "", true
	}

	value, _ := state.Get(name)
	if field.Type == model.FieldTypeNumber {
		if _, ok := model.NumberOf(value); !ok {
			return v.message(field, messages.KeyNumber, nil, ""), false
		}
	}
	if options := v.optionsFor(field); len(options) > 0 {
		if !containsOption(options, model.StringOf(value)) {
			return v.message(field, messages.KeyOption, nil, ""), false
		}
	}

	switch mask.Kind(field.Mask) {
	case mask.KindTaxID:
		if !ValidTaxID(model.StringOf(value)) {
			return v.message(field, messages.KeyTaxID, nil, ""), false
		}
	case mask.KindPostalCode:
		if !ValidPostalCode(model.StringOf(value)) {
			return v.message(field, messages.KeyPostalCode, nil, ""), false
		}
	case mask.KindDuration:
		if !mask.IsCompleteDuration(model.StringOf(value)) {
			return v.message(field, messages.KeyDuration, nil, ""), false
		}
	}

	patternIdx := 0
	for _, rule := range field.Validations {
		override := rule.Params["message"]
		switch rule.Kind {
		case model.ValidationRuleMin, model.ValidationRuleMax:
			limit, _ := strconv.ParseFloat(rule.Params["value"], 64)
			number, ok := model.NumberOf(value)
			if !ok {
				return v.message(field, messages.KeyNumber, nil, override), false
			}
			if rule.Kind == model.ValidationRuleMin && number < limit {
				return v.message(field, messages.KeyMin, rule.Params, override), false
			}
			if rule.Kind == model.ValidationRuleMax && number > limit {
				return v.message(field, messages.KeyMax, rule.Params, override), false
			}
		case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
			limit, _ := strconv.Atoi(rule.Params["value"])
			length := len([]rune(model.StringOf(value)))
			if rule.Kind == model.ValidationRuleMinLength && length < limit {
				return v.message(field, messages.KeyMinLength, rule.Params, override), false
			}
			if rule.Kind == model.ValidationRuleMaxLength && length > limit {
				return v.message(field, messages.KeyMaxLength, rule.Params, override), false
			}
		case model.ValidationRulePattern:
			re := v.patterns[name][patternIdx]
			patternIdx++
			if !re.MatchString(model.StringOf(value)) {
				return v.message(field, messages.KeyPattern, rule.Params, override), false
			}
		case model.ValidationRuleTaxID:
			if !ValidTaxID(model.StringOf(value)) {
				return v.message(field, messages.KeyTaxID, nil, override), false
			}
		case model.ValidationRulePostal:
			if !ValidPostalCode(model.StringOf(value)) {
				return v.message(field, messages.KeyPostalCode, nil, override), false
			}
		case model.ValidationRuleEmail:
			if !ValidEmail(model.StringOf(value)) {
				return v.message(field, messages.KeyEmail, nil, override), false
			}
		case model.ValidationRuleDuration:
			if !mask.IsCompleteDuration(model.StringOf(value)) {
				return v.message(field, messages.KeyDuration, nil, override), false
			}
		}
	}
	return "", true
}

func (v *Validator) optionsFor(field model.Field) []model.Option {
	if len(field.Options) > 0 {
		return field.Options
	}
	if field.Catalog == "" || v.catalogs == nil {
		return nil
	}
	return v.catalogs.OptionsFor(field)
}

func (v *Validator) message(field model.Field, key string, params map[string]string, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	data := map[string]any{"label": field.DisplayLabel()}
	for k, value := range params {
		if k == "message" {
			continue
		}
		data[k] = value
	}
	return v.messages.Message(v.locale, key, data)
}

func containsOption(options []model.Option, value string) bool {
	for _, option := range options {
		if option.Value == value {
			return true
		}
	}
	return false
}

// ValidTaxID reports whether raw holds a 14 digit CNPJ with valid check
// digits. Formatting characters are ignored.
func ValidTaxID(raw string) bool {
	digits := model.Digits(raw)
	if len(digits) != 14 {
		return false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	first := taxIDCheckDigit(digits[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	second := taxIDCheckDigit(digits[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(digits[12]-'0') == first && int(digits[13]-'0') == second
}

func taxIDCheckDigit(digits string, weights []int) int {
	sum := 0
	for idx, weight := range weights {
		sum += int(digits[idx]-'0') * weight
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// ValidPostalCode reports whether raw holds exactly 8 digits.
func ValidPostalCode(raw string) bool {
	return len(model.Digits(raw)) == 8
}

// ValidEmail reports whether raw is a bare address.
func ValidEmail(raw string) bool {
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == strings.TrimSpace(raw)
}
