package providers

import (
	"encoding/base64"
	"net/http"
	"strings"

	domainErrors "github.com/cassiomorais/pixgateway/internal/domain/errors"
)

const DefaultTenantHeader = "x-company-id"

// HeaderBuilder produces the authentication headers sent on every provider
// call. The credential is computed once; Build hands out a fresh copy.
type HeaderBuilder struct {
	authorization string
	tenantID      string
	tenantHeader  string
}

func NewHeaderBuilder(secret, tenantID, tenantHeader string) (*HeaderBuilder, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, &domainErrors.ConfigurationError{Key: "provider.secret_key", Err: domainErrors.ErrMissingSecret}
	}
	if tenantHeader == "" {
		tenantHeader = DefaultTenantHeader
	}
	token := base64.StdEncoding.EncodeToString([]byte(secret + ":x"))
	return &HeaderBuilder{
		authorization: "Basic " + token,
		tenantID:      strings.TrimSpace(tenantID),
		tenantHeader:  tenantHeader,
	}, nil
}

// Build returns a new header set. The tenant header is only present when a
// tenant is configured.
func (b *HeaderBuilder) Build() http.Header {
	h := make(http.Header, 4)
	h.Set("Authorization", b.authorization)
	if b.tenantID != "" {
		h.Set(b.tenantHeader, b.tenantID)
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}
