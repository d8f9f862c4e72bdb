package messages

import "sort"

// Message keys shared by the validation, derive, enrich and wizard layers.
const (
	KeyRequired    = "validation.required"
	KeyNumber      = "validation.number"
	KeyMin         = "validation.min"
	KeyMax         = "validation.max"
	KeyMinLength   = "validation.minLength"
	KeyMaxLength   = "validation.maxLength"
	KeyPattern     = "validation.pattern"
	KeyTaxID       = "validation.taxId"
	KeyPostalCode  = "validation.postalCode"
	KeyEmail       = "validation.email"
	KeyDuration    = "validation.duration"
	KeyOption      = "validation.option"
	KeyOrdering    = "derive.ordering"
	KeyNotFound    = "enrich.notFound"
	KeyLookupError = "enrich.failed"
	KeySubmitted   = "submit.succeeded"
	KeySubmitError = "submit.failed"
	KeyStepInvalid = "wizard.stepInvalid"
)

var builtin = map[string]map[string]string{
	"en": {
		KeyRequired:    "{{ label }} is required",
		KeyNumber:      "{{ label }} must be a number",
		KeyMin:         "{{ label }} must be at least {{ value }}",
		KeyMax:         "{{ label }} must be at most {{ value }}",
		KeyMinLength:   "{{ label }} must have at least {{ value }} characters",
		KeyMaxLength:   "{{ label }} must have at most {{ value }} characters",
		KeyPattern:     "{{ label }} has an invalid format",
		KeyTaxID:       "{{ label }} is not a valid tax ID",
		KeyPostalCode:  "{{ label }} must have 8 digits",
		KeyEmail:       "{{ label }} must be a valid email address",
		KeyDuration:    "{{ label }} must look like HH:MM or HH:MM:SS",
		KeyOption:      "{{ label }} has an unknown option",
		KeyOrdering:    "exit must be after entry",
		KeyNotFound:    "No address found for {{ key }}",
		KeyLookupError: "Address lookup unavailable",
		KeySubmitted:   "Saved successfully",
		KeySubmitError: "{% if reason %}Could not save: {{ reason }}{% else %}Could not save{% endif %}",
		KeyStepInvalid: "Fix {{ count }} field{{ count|pluralize }} before continuing",
	},
	"pt-BR": {
		KeyRequired:    "{{ label }} é obrigatório",
		KeyNumber:      "{{ label }} deve ser um número",
		KeyMin:         "{{ label }} deve ser no mínimo {{ value }}",
		KeyMax:         "{{ label }} deve ser no máximo {{ value }}",
		KeyMinLength:   "{{ label }} deve ter ao menos {{ value }} caracteres",
		KeyMaxLength:   "{{ label }} deve ter no máximo {{ value }} caracteres",
		KeyPattern:     "{{ label }} está em formato inválido",
		KeyTaxID:       "{{ label }} não é um CNPJ válido",
		KeyPostalCode:  "{{ label }} deve ter 8 dígitos",
		KeyEmail:       "{{ label }} deve ser um e-mail válido",
		KeyDuration:    "{{ label }} deve estar no formato HH:MM ou HH:MM:SS",
		KeyOption:      "{{ label }} tem uma opção desconhecida",
		KeyOrdering:    "a saída deve ser posterior à entrada",
		KeyNotFound:    "Nenhum endereço encontrado para {{ key }}",
		KeyLookupError: "Consulta de endereço indisponível",
		KeySubmitted:   "Salvo com sucesso",
		KeySubmitError: "{% if reason %}Não foi possível salvar: {{ reason }}{% else %}Não foi possível salvar{% endif %}",
		KeyStepInvalid: "Corrija {{ count }} campo{{ count|pluralize }} antes de continuar",
	},
}

func builtinLocales() []string {
	out := make([]string, 0, len(builtin))
	for locale := range builtin {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}
