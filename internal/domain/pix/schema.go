package pix

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	orderSchemaFile   = "schemas/order_request.v1.json"
	webhookSchemaFile = "schemas/webhook_event.v1.json"
)

// SchemaValidator checks the structural shape of inbound documents before
// any field is interpreted.
type SchemaValidator struct {
	order   *jsonschema.Schema
	webhook *jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	order, err := compileSchema(orderSchemaFile)
	if err != nil {
		return nil, err
	}
	webhook, err := compileSchema(webhookSchemaFile)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{order: order, webhook: webhook}, nil
}

// MustSchemaValidator panics when the embedded schemas do not compile.
func MustSchemaValidator() *SchemaValidator {
	v, err := NewSchemaValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	s, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

// ValidateOrder checks an already-decoded order (json.Number preserved).
func (v *SchemaValidator) ValidateOrder(order *OrderRequest) error {
	return toValidationError(v.order.Validate(order.Fields()))
}

// ValidateWebhook checks a decoded webhook document.
func (v *SchemaValidator) ValidateWebhook(doc map[string]any) error {
	return toValidationError(v.webhook.Validate(doc))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return domainErrors.WrapValidationError("body", err.Error(), domainErrors.ErrInvalidInput)
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.ReplaceAll(strings.TrimPrefix(leaf.InstanceLocation, "/"), "/", ".")
	if field == "" {
		field = "body"
	}
	return domainErrors.WrapValidationError(field, leaf.Message, domainErrors.ErrInvalidInput)
}
