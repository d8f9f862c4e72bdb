package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const contactAPI = `
openapi: 3.0.3
info:
  title: Contacts
  version: 1.0.0
paths:
  /contacts:
    post:
      operationId: contact
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [nm_contato, ds_email, cd_origem]
              properties:
                nm_contato: {type: string}
                ds_email: {type: string, format: email}
                nr_telefone: {type: string}
                ds_observacao: {type: string}
                cd_origem: {type: string}
                _version: {type: string}
      responses:
        "201":
          description: created
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBuiltinsPassLint(t *testing.T) {
	t.Parallel()

	violations, err := run(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %+v", violations)
	}
}

func TestBrokenDefinitionIsReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", `
id: broken
fields:
  - name: a
rules:
  - trigger: a
    affected: [missing]
`)
	violations, err := run([]string{"--builtins=false", dir}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(violations) != 1 || violations[0].location != "broken" {
		t.Fatalf("expected one violation for broken, got %+v", violations)
	}
}

func TestContractCheck(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	contract := writeFile(t, dir, "api.yaml", contactAPI)
	violations, err := run([]string{"--openapi", contract}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got []string
	for _, v := range violations {
		got = append(got, v.location+": "+v.message)
	}
	want := []string{
		"contact > cd_origem: required by operation contact but never collected",
		"contact > ds_cargo: not declared by operation contact",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
}

func TestScaffoldPrintsDefinition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	contract := writeFile(t, dir, "api.yaml", contactAPI)
	var out bytes.Buffer
	if _, err := run([]string{"--openapi", contract, "--operation", "contact", "--scaffold"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"id: contact", "name: nm_contato", "required: true"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("scaffold missing %q:\n%s", want, out.String())
		}
	}
}
