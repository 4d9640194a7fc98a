package parser

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	pkgopenapi "github.com/goliatone/go-form2/pkg/openapi"
	"github.com/goliatone/go-form2/pkg/schema"
	"github.com/goliatone/go-form2/pkg/testsupport"
)

func TestOperations_Petstore(t *testing.T) {
	doc := testsupport.LoadDocument(t, testsupport.Fixture("petstore.yaml"))

	operations, err := New(pkgopenapi.NewParserOptions()).Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("operations: %v", err)
	}

	var ids []string
	for id := range operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"createOwner", "createPet", "listPets"}, ids); diff != "" {
		t.Fatalf("operation ids mismatch (-want +got):\n%s", diff)
	}

	pet := operations["createPet"]
	if pet.Method != "POST" || pet.Path != "/pets" || pet.Summary != "Register a pet" {
		t.Fatalf("unexpected operation header: %+v", pet)
	}
	body := pet.RequestBody
	if body.Ref != "#/components/schemas/NewPet" || body.Type != "object" {
		t.Fatalf("unexpected request body: %s", body.DebugString())
	}
	name := body.Properties["name"]
	if name.Title != "Pet name" || *name.MinLength != 2 || *name.MaxLength != 40 {
		t.Fatalf("unexpected name property: %+v", name)
	}
	age := body.Properties["age"]
	if *age.Minimum != 0 || *age.Maximum != 40 {
		t.Fatalf("unexpected age bounds: %+v", age)
	}
	vaccines := body.Properties["vaccines"]
	if vaccines.Items == nil || !vaccines.Items.IsRequired("kind") {
		t.Fatalf("expected vaccines items with required kind, got %+v", vaccines)
	}
	if got := body.Properties["species"].Default; got != "cat" {
		t.Fatalf("species default = %v, want cat", got)
	}

	if operations["listPets"].HasRequestBody() {
		t.Fatalf("listPets should not have a request body")
	}
	if _, ok := pet.Responses["201"]; ok {
		t.Fatalf("response without content should be skipped")
	}
}

func TestOperations_NoOperations(t *testing.T) {
	const document = `openapi: 3.0.0
info: {title: Empty, version: 1.0.0}
paths: {}
`
	doc := schema.MustNewDocument(schema.SourceFromFile("inline.yaml"), []byte(document))

	if _, err := New(pkgopenapi.NewParserOptions()).Operations(context.Background(), doc); err == nil {
		t.Fatalf("expected error for document without operations")
	}

	partial := New(pkgopenapi.NewParserOptions(pkgopenapi.WithPartialDocuments(true)))
	operations, err := partial.Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("partial operations: %v", err)
	}
	if len(operations) != 0 {
		t.Fatalf("expected no operations, got %d", len(operations))
	}
}

func TestOperations_InvalidDocument(t *testing.T) {
	doc := schema.MustNewDocument(schema.SourceFromFile("broken.yaml"), []byte("openapi: [unterminated"))
	_, err := New(pkgopenapi.NewParserOptions()).Operations(context.Background(), doc)
	if err == nil || !strings.Contains(err.Error(), "load document") {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestOperations_DefaultOperationID(t *testing.T) {
	const document = `openapi: 3.0.0
info: {title: Anonymous, version: 1.0.0}
paths:
  /notes:
    put:
      requestBody:
        content:
          application/x-www-form-urlencoded:
            schema:
              type: object
              properties:
                text: {type: string}
      responses:
        '204': {description: saved}
`
	doc := schema.MustNewDocument(schema.SourceFromFile("inline.yaml"), []byte(document))
	operations, err := New(pkgopenapi.NewParserOptions()).Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	op, ok := operations["put:/notes"]
	if !ok {
		t.Fatalf("expected operation keyed put:/notes, got %v", operations)
	}
	if _, ok := op.RequestBody.Properties["text"]; !ok {
		t.Fatalf("expected form encoded body to be read")
	}
}

func TestConvertHandlesRecursiveReferences(t *testing.T) {
	const document = `{
  "openapi": "3.0.0",
  "info": { "title": "Cycle", "version": "1.0.0" },
  "paths": {},
  "components": {
    "schemas": {
      "PublishingHouse": {
        "type": "object",
        "properties": {
          "headquarters": { "$ref": "#/components/schemas/Headquarters" }
        }
      },
      "Headquarters": {
        "type": "object",
        "properties": {
          "publisher": { "$ref": "#/components/schemas/PublishingHouse" }
        }
      }
    }
  }
}`

	spec, err := openapi3.NewLoader().LoadFromData([]byte(document))
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}

	converted := newConverter().convert(spec.Components.Schemas["PublishingHouse"])
	headquarters, ok := converted.Properties["headquarters"]
	if !ok || headquarters.Ref != "#/components/schemas/Headquarters" {
		t.Fatalf("expected headquarters reference, got %+v", headquarters)
	}
	publisher, ok := headquarters.Properties["publisher"]
	if !ok {
		t.Fatalf("expected publisher property on headquarters")
	}
	if publisher.Ref == "" || len(publisher.Properties) != 0 {
		t.Fatalf("expected the cycle to stop at the publisher reference, got %+v", publisher)
	}
}

func TestConvertMergesAllOfSchemas(t *testing.T) {
	const document = `{
  "openapi": "3.0.0",
  "info": { "title": "AllOf", "version": "1.0.0" },
  "paths": {
    "/users": {
      "post": {
        "operationId": "createUser",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "allOf": [
                  {"$ref": "#/components/schemas/BaseUser"},
                  {
                    "type": "object",
                    "required": ["email"],
                    "properties": {
                      "email": {"type": "string", "format": "email"}
                    }
                  }
                ]
              }
            }
          }
        },
        "responses": {
          "200": {"description": "ok"}
        }
      }
    }
  },
  "components": {
    "schemas": {
      "BaseUser": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "age": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

	doc := schema.MustNewDocument(schema.SourceFromFile("inline.json"), []byte(document))
	operations, err := New(pkgopenapi.NewParserOptions()).Operations(context.Background(), doc)
	if err != nil {
		t.Fatalf("parse operations: %v", err)
	}

	req := operations["createUser"].RequestBody
	if req.Type != "object" {
		t.Fatalf("request schema type = %q, want object", req.Type)
	}
	if len(req.Properties) != 3 {
		t.Fatalf("properties length = %d, want 3", len(req.Properties))
	}
	if email := req.Properties["email"]; email.Format != "email" {
		t.Fatalf("expected email property with format email, got %+v", email)
	}
	if age := req.Properties["age"]; age.Minimum == nil || *age.Minimum != 1 {
		t.Fatalf("expected age property with minimum 1, got %+v", age)
	}
	if diff := cmp.Diff([]string{"name", "email"}, req.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
}
