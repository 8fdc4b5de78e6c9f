package exchange

import (
	"context"
	"strings"
	"time"
)

// Gate authorizes privileged operations against the configured admin secret.
type Gate struct {
	secret string
}

// NewGate creates a gate. An empty secret is a startup error: the exchange
// must not run with admin operations open to anyone.
func NewGate(secret string) (*Gate, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, NewError(KindStartup, "admin secret is not configured")
	}
	return &Gate{secret: secret}, nil
}

// Authorize reports whether supplied matches the admin secret.
//
// The comparison is a plain string equality, not constant-time, so response
// timing can leak how much of a guess matched.
func (g *Gate) Authorize(supplied string) bool {
	return supplied == g.secret
}

// AdminEntry is one row of the admin participant listing.
type AdminEntry struct {
	Token         string
	Name          string
	RegisteredAt  time.Time
	IPAddress     string
	HasAssignment bool
}

// Admin exposes gated registry operations.
type Admin struct {
	gate     *Gate
	registry *Registry
}

// NewAdmin creates an Admin guarding registry with gate.
func NewAdmin(gate *Gate, registry *Registry) *Admin {
	return &Admin{gate: gate, registry: registry}
}

// Participants lists every participant with assignment status.
func (a *Admin) Participants(secret string) ([]AdminEntry, error) {
	if !a.gate.Authorize(secret) {
		return nil, errUnauthorized()
	}
	list := a.registry.List()
	out := make([]AdminEntry, len(list))
	for i, p := range list {
		out[i] = AdminEntry{
			Token:         p.Token,
			Name:          p.Name,
			RegisteredAt:  p.RegisteredAt,
			IPAddress:     p.IPAddress,
			HasAssignment: p.HasAssignment(),
		}
	}
	return out, nil
}

// Shuffle triggers a shuffle.
func (a *Admin) Shuffle(ctx context.Context, secret string) error {
	if !a.gate.Authorize(secret) {
		return errUnauthorized()
	}
	return a.registry.Shuffle(ctx)
}

// Reopen clears assignments and reopens registration.
func (a *Admin) Reopen(ctx context.Context, secret string) error {
	if !a.gate.Authorize(secret) {
		return errUnauthorized()
	}
	return a.registry.Reopen(ctx)
}

func errUnauthorized() error {
	return NewError(KindAuth, "unauthorized")
}
