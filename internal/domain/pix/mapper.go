package pix

import (
	"encoding/json"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// Mapper turns an OrderRequest into the provider's creation payload.
// A Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	aliases        Aliases
	publicBaseURL  string
	logger         zerolog.Logger
	newID          func() string
	onSplitDropped func(reason string)
}

type MapperOption func(*Mapper)

// WithPublicBaseURL sets the externally reachable base used to derive the
// default postback URL.
func WithPublicBaseURL(base string) MapperOption {
	return func(m *Mapper) { m.publicBaseURL = strings.TrimSpace(base) }
}

func WithLogger(l zerolog.Logger) MapperOption {
	return func(m *Mapper) { m.logger = l }
}

// WithIDGenerator replaces the fallback description id source.
func WithIDGenerator(fn func() string) MapperOption {
	return func(m *Mapper) { m.newID = fn }
}

// WithSplitDroppedHook is called once per discarded split entry.
func WithSplitDroppedHook(fn func(reason string)) MapperOption {
	return func(m *Mapper) { m.onSplitDropped = fn }
}

func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		aliases:        DefaultAliases,
		logger:         zerolog.Nop(),
		newID:          timeOrderedID,
		onSplitDropped: func(string) {},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func timeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Map builds the payload. Any ValidationError aborts the whole mapping; no
// partially built payload is ever returned.
func (m *Mapper) Map(order *OrderRequest) (*TransactionCreatePayload, error) {
	fields := order.Fields()

	p := &TransactionCreatePayload{
		Currency:      CurrencyBRL,
		PaymentMethod: PaymentMethodPIX,
	}

	customer, err := m.resolveCustomer(order)
	if err != nil {
		return nil, err
	}
	p.Customer = customer

	if err := m.resolveLines(order, p); err != nil {
		return nil, err
	}

	splits, err := m.resolveSplits(order)
	if err != nil {
		return nil, err
	}
	p.Splits = splits

	if raw, ok := order.Lookup(m.aliases.Metadata); ok {
		md, isObj := raw.(map[string]any)
		if !isObj {
			return nil, domainErrors.WrapValidationError("metadata", "must be an object", domainErrors.ErrInvalidInput)
		}
		p.Metadata = md
	}

	p.Description = m.resolveDescription(order)
	p.PostbackURL = m.resolvePostbackURL(order)

	reserved := m.aliases.topLevel()
	for k, v := range fields {
		if reserved[k] {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}

	return p, nil
}

func (m *Mapper) resolveCustomer(order *OrderRequest) (map[string]any, error) {
	raw, ok := order.Lookup(m.aliases.Customer)
	if !ok {
		return nil, nil
	}
	c, isObj := raw.(map[string]any)
	if !isObj {
		return nil, domainErrors.WrapValidationError("customer", "must be an object", domainErrors.ErrInvalidInput)
	}
	return c, nil
}

// resolveLines fills Amount and the item list. Pre-built items win over
// products and are forwarded unmodified.
func (m *Mapper) resolveLines(order *OrderRequest, p *TransactionCreatePayload) error {
	rawAmount, hasAmount := order.Lookup(m.aliases.Amount)
	if hasAmount {
		cents, err := ToCents(rawAmount)
		if err != nil {
			return domainErrors.WrapValidationError("amount", err.Error(), domainErrors.ErrInvalidAmount)
		}
		p.Amount = &cents
	}

	if raw, ok := order.Lookup(m.aliases.Items); ok {
		items, isList := raw.([]any)
		if !isList {
			return domainErrors.WrapValidationError("items", "must be an array", domainErrors.ErrInvalidInput)
		}
		if len(items) == 0 && !hasAmount {
			return domainErrors.WrapValidationError("amount", domainErrors.ErrNoAmountSource.Error(), domainErrors.ErrNoAmountSource)
		}
		p.ForwardedItems = items
		return nil
	}

	raw, ok := order.Lookup(m.aliases.Products)
	if !ok {
		if !hasAmount {
			return domainErrors.WrapValidationError("amount", domainErrors.ErrNoAmountSource.Error(), domainErrors.ErrNoAmountSource)
		}
		return nil
	}
	products, isList := raw.([]any)
	if !isList {
		return domainErrors.WrapValidationError("products", "must be an array", domainErrors.ErrInvalidInput)
	}
	if len(products) == 0 && !hasAmount {
		return domainErrors.WrapValidationError("amount", domainErrors.ErrNoAmountSource.Error(), domainErrors.ErrNoAmountSource)
	}

	items := make([]LineItem, 0, len(products))
	var total int64
	for i, rawProduct := range products {
		item, err := m.mapProduct(i, rawProduct)
		if err != nil {
			return err
		}
		line, err := item.Total()
		if err != nil {
			return domainErrors.WrapValidationError(fmt.Sprintf("products[%d].quantity", i), err.Error(), domainErrors.ErrInvalidAmount)
		}
		if total, err = AddCents(total, line); err != nil {
			return domainErrors.WrapValidationError("amount", "sum of product lines is too large", domainErrors.ErrInvalidAmount)
		}
		items = append(items, item)
	}
	p.Items = items
	if !hasAmount {
		p.Amount = &total
	}
	return nil
}

func (m *Mapper) mapProduct(i int, raw any) (LineItem, error) {
	field := fmt.Sprintf("products[%d]", i)
	product, ok := raw.(map[string]any)
	if !ok {
		return LineItem{}, domainErrors.WrapValidationError(field, "must be an object", domainErrors.ErrInvalidInput)
	}

	title, _ := lookup(product, m.aliases.Title)
	titleStr, ok := scalarString(title)
	if !ok {
		return LineItem{}, domainErrors.NewValidationError(field+".title", "name or title is required")
	}

	rawPrice, ok := lookup(product, m.aliases.UnitPrice)
	if !ok {
		return LineItem{}, domainErrors.WrapValidationError(field+".unitPrice", "unitPrice or amount is required", domainErrors.ErrInvalidAmount)
	}
	cents, err := ToCents(rawPrice)
	if err != nil {
		return LineItem{}, domainErrors.WrapValidationError(field+".unitPrice", err.Error(), domainErrors.ErrInvalidAmount)
	}

	rawQty, hasQty := lookup(product, m.aliases.Quantity)
	qty, err := toQuantity(rawQty, hasQty)
	if err != nil {
		return LineItem{}, domainErrors.WrapValidationError(field+".quantity", err.Error(), domainErrors.ErrInvalidQuantity)
	}

	item := LineItem{
		Title:          titleStr,
		UnitPriceCents: cents,
		Quantity:       qty,
	}
	if ref, ok := lookup(product, m.aliases.ExternalRef); ok {
		item.ExternalRef, _ = scalarString(ref)
	}
	return item, nil
}

// resolveSplits keeps well-formed entries and drops the rest with a warning.
func (m *Mapper) resolveSplits(order *OrderRequest) ([]Split, error) {
	raw, ok := order.Lookup(m.aliases.Splits)
	if !ok {
		return nil, nil
	}
	entries, isList := raw.([]any)
	if !isList {
		return nil, domainErrors.WrapValidationError("splits", "must be an array", domainErrors.ErrInvalidInput)
	}

	splits := make([]Split, 0, len(entries))
	for i, entry := range entries {
		split, reason := parseSplit(entry)
		if reason != "" {
			m.logger.Warn().Int("index", i).Str("reason", reason).Msg("Dropping malformed split entry")
			m.onSplitDropped(reason)
			continue
		}
		splits = append(splits, split)
	}
	return splits, nil
}

func parseSplit(entry any) (Split, string) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return Split{}, "not_an_object"
	}
	recipient, ok := scalarString(obj["recipientId"])
	if !ok {
		return Split{}, "missing_recipient"
	}
	rawPct, ok := obj["percentage"]
	if !ok || rawPct == nil {
		return Split{}, "missing_percentage"
	}
	pct, err := toDecimal(rawPct)
	if err != nil {
		return Split{}, "invalid_percentage"
	}

	s := Split{RecipientID: recipient, Percentage: pct.InexactFloat64()}
	if err := validate.Struct(s); err != nil {
		return Split{}, "percentage_out_of_range"
	}
	return s, ""
}

func (m *Mapper) resolveDescription(order *OrderRequest) string {
	if raw, ok := order.Lookup(m.aliases.Description); ok {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if raw, ok := order.Lookup(m.aliases.Identifier); ok {
		if id, ok := scalarString(raw); ok {
			return "Order " + id
		}
	}
	return "Order " + m.newID()
}

// resolvePostbackURL applies, in order: caller URL, derived default, none.
func (m *Mapper) resolvePostbackURL(order *OrderRequest) string {
	if raw, ok := order.Lookup(m.aliases.Callback); ok {
		if s, isStr := raw.(string); isStr && s != "" {
			if IsAbsoluteHTTPURL(s) {
				return s
			}
			m.logger.Warn().Str("callback_url", s).Msg("Ignoring callback URL that is not an absolute http(s) URL")
		}
	}
	return DefaultPostbackURL(m.publicBaseURL)
}

// DefaultPostbackURL derives the webhook URL for base, or "" when base is empty.
func DefaultPostbackURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + WebhookPath
}

// IsAbsoluteHTTPURL reports whether s is an http or https URL with a host.
func IsAbsoluteHTTPURL(s string) bool {
	return validate.Var(s, "required,http_url") == nil
}

// String renders the JSON body, used in debug logs.
func (p *TransactionCreatePayload) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("<unmarshalable payload: %v>", err)
	}
	return string(b)
}
