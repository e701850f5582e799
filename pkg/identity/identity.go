// Package identity resolves the Entra (client id, tenant id) pair a request
// should authenticate against. Git configuration wins over challenge
// parameters, and the pair is always taken from a single source.
package identity

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/git-credential-msal/pkg/gitconfig"
	"github.com/telekom/git-credential-msal/pkg/protocol"
	"github.com/telekom/git-credential-msal/pkg/wwwauth"
)

const (
	clientIDKey = "credential.msalClientId"
	tenantIDKey = "credential.msalTenantId"

	authorityBase = "https://login.microsoftonline.com/"
)

// Identity addresses one Entra application registration. Either half may be
// empty, which means resolution could not determine it.
type Identity struct {
	ClientID string
	TenantID string
}

// Complete reports whether both halves are present.
func (id Identity) Complete() bool {
	return id.ClientID != "" && id.TenantID != ""
}

// CacheName derives the deterministic key that namespaces this identity's
// cache entries. Distinct identities never share a name.
func (id Identity) CacheName() string {
	return id.TenantID + "_" + id.ClientID
}

// Authority returns the Entra authority URL for the tenant.
func (id Identity) Authority() string {
	return authorityBase + id.TenantID
}

// Resolver determines the identity pair for a request.
type Resolver struct {
	Config gitconfig.Source
	Log    *zap.Logger
}

// Resolve tries git configuration first and falls back to the server's
// bearer challenges. The pair is resolved as a unit: if configuration
// yields only one half, both are discarded and challenge parsing decides.
func (r *Resolver) Resolve(ctx context.Context, req *protocol.Request) Identity {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	if id := r.fromConfig(ctx, req); id.Complete() {
		log.Debug("identity resolved from git config", zap.String("tenant", id.TenantID))
		return id
	}

	id := fromChallenges(req)
	if id.Complete() {
		log.Debug("identity resolved from bearer challenge", zap.String("tenant", id.TenantID))
	}
	return id
}

func (r *Resolver) fromConfig(ctx context.Context, req *protocol.Request) Identity {
	if r.Config == nil {
		return Identity{}
	}
	url := req.URL()
	clientID, _ := r.Config.GetURLMatch(ctx, url, clientIDKey)
	tenantID, _ := r.Config.GetURLMatch(ctx, url, tenantIDKey)
	id := Identity{ClientID: clientID, TenantID: tenantID}
	if !id.Complete() {
		return Identity{}
	}
	return id
}

func fromChallenges(req *protocol.Request) Identity {
	challenges, ok := req.GetAll("wwwauth")
	if !ok {
		return Identity{}
	}
	for _, challenge := range challenges {
		if clientID, tenantID, ok := wwwauth.ExtractIdentity(challenge); ok {
			return Identity{ClientID: clientID, TenantID: tenantID}
		}
	}
	return Identity{}
}
