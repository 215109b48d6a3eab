package subscription

import (
	"context"

	"biteboard/internal/provider"
	"biteboard/pkg/logx"
)

// Providers is the part of provider.Registry the resolver needs.
type Providers interface {
	Get(name string) (provider.Provider, bool)
	First() (provider.Provider, bool)
}

// Resolver picks the provider to use for a user.
type Resolver struct {
	users     *Service
	providers Providers
	log       logx.Logger
}

func NewResolver(users *Service, providers Providers, log logx.Logger) *Resolver {
	return &Resolver{users: users, providers: providers, log: log.With(logx.String("comp", "resolver"))}
}

// Resolve returns the user's preferred provider if it is registered, else the
// first registered provider. ok is false when no provider is registered.
func (r *Resolver) Resolve(ctx context.Context, userID string) (p provider.Provider, ok bool) {
	u, err := r.users.FindOrCreateUser(ctx, userID)
	if err != nil {
		r.log.Warn("user lookup failed, using default provider", logx.String("user", userID), logx.Err(err))
	}
	if u.PreferredMenuProvider != "" {
		if p, ok := r.providers.Get(u.PreferredMenuProvider); ok {
			return p, true
		}
	}

	p, ok = r.providers.First()
	if !ok {
		return nil, false
	}
	r.log.Warn("no usable preferred provider, falling back",
		logx.String("user", userID),
		logx.String("preferred", u.PreferredMenuProvider),
		logx.String("provider", p.Name()),
	)
	return p, true
}
