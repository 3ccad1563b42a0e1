package pix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
)

// Aliases lists, for each logical order field, the input names accepted for
// it in precedence order. The first non-null value wins.
type Aliases struct {
	Customer    []string
	Items       []string
	Products    []string
	Amount      []string
	Title       []string
	UnitPrice   []string
	Quantity    []string
	ExternalRef []string
	Callback    []string
	Identifier  []string
	Description []string
	Splits      []string
	Metadata    []string
}

// DefaultAliases are the field names observed from existing checkout clients.
var DefaultAliases = Aliases{
	Customer:    []string{"customer", "client"},
	Items:       []string{"items"},
	Products:    []string{"products"},
	Amount:      []string{"amount"},
	Title:       []string{"name", "title"},
	UnitPrice:   []string{"unitPrice", "amount"},
	Quantity:    []string{"quantity"},
	ExternalRef: []string{"id", "externalRef"},
	Callback:    []string{"callbackUrl", "postbackUrl"},
	Identifier:  []string{"identifier"},
	Description: []string{"description"},
	Splits:      []string{"splits"},
	Metadata:    []string{"metadata"},
}

// topLevel returns every order-level key the mapper interprets. Anything
// outside this set is forwarded untouched.
func (a Aliases) topLevel() map[string]bool {
	keys := map[string]bool{"currency": true, "paymentMethod": true}
	groups := [][]string{
		a.Customer, a.Items, a.Products, a.Amount, a.Callback,
		a.Identifier, a.Description, a.Splits, a.Metadata,
	}
	for _, g := range groups {
		for _, k := range g {
			keys[k] = true
		}
	}
	return keys
}

// lookup returns the first non-null value among keys.
func lookup(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// OrderRequest is a caller-submitted order in whatever shape the client used.
type OrderRequest struct {
	fields map[string]any
}

// NewOrderRequest wraps already-decoded fields.
func NewOrderRequest(fields map[string]any) *OrderRequest {
	if fields == nil {
		fields = map[string]any{}
	}
	return &OrderRequest{fields: fields}
}

// ParseOrderRequest decodes a JSON object body. Numbers are kept as
// json.Number so amounts are never rounded through float64.
func ParseOrderRequest(body []byte) (*OrderRequest, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	return NewOrderRequest(fields), nil
}

// Fields exposes the raw decoded order.
func (o *OrderRequest) Fields() map[string]any {
	return o.fields
}

// Lookup resolves a logical field through its alias list.
func (o *OrderRequest) Lookup(keys []string) (any, bool) {
	return lookup(o.fields, keys)
}

func decodeObject(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domainErrors.WrapValidationError("body", "request body is empty", domainErrors.ErrInvalidInput)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domainErrors.WrapValidationError("body", "invalid JSON: "+err.Error(), domainErrors.ErrInvalidInput)
	}
	if fields == nil {
		return nil, domainErrors.WrapValidationError("body", "must be a JSON object", domainErrors.ErrInvalidInput)
	}
	return fields, nil
}

// scalarString renders ids that clients send either as strings or numbers.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), true
	case float64:
		return fmt.Sprintf("%v", s), true
	case int, int64:
		return fmt.Sprintf("%d", s), true
	}
	return "", false
}
