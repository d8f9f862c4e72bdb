package openapi

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const clientsAPI = `
openapi: 3.0.3
info:
  title: Clients
  version: 1.0.0
paths:
  /clients:
    post:
      operationId: createClient
      summary: Register client
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name, taxId]
              properties:
                name:
                  type: string
                  title: Company name
                  maxLength: 120
                taxId:
                  type: string
                  x-formflow:
                    label: CNPJ
                    mask: tax-id
                tier:
                  type: string
                  enum: [basic, premium]
                seats:
                  type: integer
                  minimum: 1
                email:
                  type: string
                  format: email
                address:
                  type: object
                  properties:
                    street: {type: string}
      responses:
        "201":
          description: created
    get:
      operationId: listClients
      responses:
        "200":
          description: ok
`

func TestOperationImportsRequestFields(t *testing.T) {
	t.Parallel()

	doc, err := Load(context.Background(), []byte(clientsAPI))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"createClient", "listClients"}, doc.OperationIDs()); diff != "" {
		t.Fatalf("operation ids mismatch (-want +got):\n%s", diff)
	}

	op, err := doc.Operation("createClient")
	if err != nil {
		t.Fatalf("operation: %v", err)
	}
	want := []schema.FieldDef{
		{Name: "email", Type: "string", Validations: []schema.ValidationDef{{Kind: model.ValidationRuleEmail}}},
		{Name: "name", Type: "string", Label: "Company name", Required: true,
			Validations: []schema.ValidationDef{{Kind: model.ValidationRuleMaxLength, Value: "120"}}},
		{Name: "seats", Type: "number", Validations: []schema.ValidationDef{{Kind: model.ValidationRuleMin, Value: "1"}}},
		{Name: "taxId", Type: "string", Label: "CNPJ", Mask: "tax-id", Required: true},
		{Name: "tier", Type: "select", Options: []model.Option{{Value: "basic", Label: "basic"}, {Value: "premium", Label: "premium"}}},
	}
	if diff := cmp.Diff(want, op.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	def := op.Scaffold()
	if def.ID != "createClient" || def.Title != "Register client" {
		t.Fatalf("unexpected scaffold %+v", def)
	}
	if err := def.Check(); err != nil {
		t.Fatalf("scaffold should be a valid definition: %v", err)
	}
}

func TestOperationErrors(t *testing.T) {
	t.Parallel()

	doc, err := Load(context.Background(), []byte(clientsAPI))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := doc.Operation("deleteClient"); !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
	if _, err := doc.Operation("listClients"); !errors.Is(err, ErrNoRequestBody) {
		t.Fatalf("expected ErrNoRequestBody, got %v", err)
	}
}
