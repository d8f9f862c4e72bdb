package submit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Error is a rejected submission. Server messages keyed by a known field end
// up in Fields, everything else in Form. Both feed the user-facing reason
// because submission failures are reported as a single form-level
// notification.
type Error struct {
	StatusCode int
	Form       []string
	Fields     map[model.FieldName][]string
	Err        error
}

func (e *Error) Error() string {
	reason := e.Reason()
	switch {
	case reason != "" && e.StatusCode > 0:
		return "submit: status " + strconv.Itoa(e.StatusCode) + ": " + reason
	case reason != "":
		return "submit: " + reason
	case e.Err != nil:
		return "submit: " + e.Err.Error()
	default:
		return "submit: status " + strconv.Itoa(e.StatusCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Reason joins the server messages for display.
func (e *Error) Reason() string {
	parts := append([]string(nil), e.Form...)
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		for _, message := range e.Fields[model.FieldName(name)] {
			parts = append(parts, name+": "+message)
		}
	}
	return strings.Join(normalizeMessages(parts), "; ")
}

// MapErrorPayload splits a server error payload into field and form level
// messages. Keys may be plain names or JSON pointer style paths such as
// "/body/taxId"; unknown keys are kept at form level so nothing is lost.
func MapErrorPayload(form model.FormModel, payload map[string][]string) (map[model.FieldName][]string, []string) {
	if len(payload) == 0 {
		return nil, nil
	}
	known := make(map[string]struct{}, len(form.Fields))
	for _, field := range form.Fields {
		known[string(field.Name)] = struct{}{}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make(map[model.FieldName][]string)
	var formLevel []string
	for _, key := range keys {
		messages := normalizeMessages(payload[key])
		if len(messages) == 0 {
			continue
		}
		name, ok := mapErrorPath(key, known)
		if !ok {
			formLevel = append(formLevel, messages...)
			continue
		}
		fields[name] = append(fields[name], messages...)
	}
	if len(fields) == 0 {
		fields = nil
	}
	return fields, normalizeMessages(formLevel)
}

func mapErrorPath(raw string, known map[string]struct{}) (model.FieldName, bool) {
	if isFormLevelKey(raw) {
		return "", false
	}
	segments := parsePathSegments(raw)
	for _, segment := range dropWrapperSegments(segments) {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		if _, ok := known[segment]; ok {
			return model.FieldName(segment), true
		}
		break
	}
	return "", false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	for strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, ".") || strings.HasPrefix(clean, "$") {
		clean = clean[1:]
	}
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)
	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if segment := strings.TrimSpace(part); segment != "" {
			out = append(out, strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~"))
		}
	}
	return out
}

func dropWrapperSegments(segments []string) []string {
	for len(segments) > 0 {
		switch strings.ToLower(segments[0]) {
		case "body", "request", "payload", "data", "attributes":
			segments = segments[1:]
			continue
		}
		break
	}
	return segments
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
