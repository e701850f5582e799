package helper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/telekom/git-credential-msal/pkg/broker"
	"github.com/telekom/git-credential-msal/pkg/cache"
	"github.com/telekom/git-credential-msal/pkg/identity"
	"github.com/telekom/git-credential-msal/pkg/protocol"
)

// BrokerFactory attaches a broker to the loaded caches. Injected so the
// orchestration is testable without a browser or network.
type BrokerFactory func(opts broker.Options) broker.Broker

// Options select the acquisition behavior for one invocation.
type Options struct {
	// DeviceCode selects the device-code flow instead of the browser flow
	// when silent reacquisition cannot produce a token.
	DeviceCode bool

	// AllowInsecure permits the plaintext token cache fallback when the
	// secure store is unavailable.
	AllowInsecure bool

	// NoBrowser suppresses spawning a browser; the user follows the
	// printed URL instead.
	NoBrowser bool
}

// Orchestrator drives the broker through silent-first acquisition and owns
// the cache round-trip on either outcome.
type Orchestrator struct {
	Store     *cache.Store
	NewBroker BrokerFactory
	Stderr    io.Writer
	Log       *zap.Logger
}

// Acquire resolves a credential for the identity, or reports that none
// could be produced. Failures are diagnostics, not errors; both caches are
// persisted regardless of outcome.
func (o *Orchestrator) Acquire(ctx context.Context, id identity.Identity, opts Options) (*protocol.Response, bool) {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	stderr := o.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	name := id.CacheName()
	tokenCache := broker.NewTokenCache()
	tokenCache.Deserialize(o.Store.LoadToken(name))
	httpCache := broker.NewHTTPCache(nil)
	httpCache.Deserialize(o.Store.LoadHTTP(name))

	newBroker := o.NewBroker
	if newBroker == nil {
		newBroker = func(opts broker.Options) broker.Broker { return broker.New(opts) }
	}
	b := newBroker(broker.Options{
		ClientID:   id.ClientID,
		Authority:  id.Authority(),
		TokenCache: tokenCache,
		HTTPCache:  httpCache,
		Diag:       stderr,
		Log:        log,
		NoBrowser:  opts.NoBrowser,
	})

	defer func() {
		if blob, err := tokenCache.Serialize(); err == nil {
			o.Store.StoreToken(name, blob, tokenCache.Changed(), opts.AllowInsecure)
		}
		if blob, err := httpCache.Serialize(); err == nil {
			o.Store.StoreHTTP(name, blob)
		}
	}()

	var result *broker.Result
	var err error
	if accounts := b.Accounts(); len(accounts) > 0 {
		result, err = b.AcquireSilent(ctx, accounts[0])
		if err != nil && !errors.Is(err, broker.ErrSilentUnavailable) {
			log.Debug("silent acquisition failed", zap.Error(err))
		}
	}

	if result == nil {
		if opts.DeviceCode {
			result, err = b.AcquireDeviceCode(ctx)
		} else {
			result, err = b.AcquireInteractive(ctx)
		}
	}

	if err != nil && result == nil {
		var authErr *broker.AuthError
		if errors.As(err, &authErr) {
			_, _ = fmt.Fprintf(stderr, "Error: %s\n", authErr.Code)
			_, _ = fmt.Fprintf(stderr, "Description: %s\n", authErr.Description)
		} else {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return nil, false
	}
	if result == nil {
		return nil, false
	}

	// Surface the identity token recorded for the now-current account.
	token := tokenCache.IDToken(result.Account.HomeAccountID)
	if token == "" {
		token = result.IDToken
	}
	expiry, err := broker.TokenExpiry(token)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return &protocol.Response{Credential: token, ExpiryUnix: expiry}, true
}
