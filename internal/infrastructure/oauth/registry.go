// Package oauth resolves third-party access tokens into external identities.
// Each provider is one ports.IdentityResolver; the Registry picks by name.
package oauth

import (
	"fmt"
	"strings"

	"github.com/norem/auth-service/internal/core/domain"
	"github.com/norem/auth-service/internal/core/ports"
)

type Registry struct {
	resolvers map[domain.Provider]ports.IdentityResolver
}

func NewRegistry(resolvers ...ports.IdentityResolver) *Registry {
	r := &Registry{resolvers: make(map[domain.Provider]ports.IdentityResolver, len(resolvers))}
	for _, res := range resolvers {
		r.resolvers[res.Provider()] = res
	}
	return r
}

// Lookup returns the resolver for a provider name such as "github".
func (r *Registry) Lookup(name string) (ports.IdentityResolver, error) {
	res, ok := r.resolvers[domain.Provider(strings.ToLower(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}
	return res, nil
}
