package helper

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/telekom/git-credential-msal/pkg/gitconfig"
	"github.com/telekom/git-credential-msal/pkg/identity"
	"github.com/telekom/git-credential-msal/pkg/protocol"
)

// Pipeline wires the request-to-response flow for one `get` invocation.
type Pipeline struct {
	Config       gitconfig.Source
	Orchestrator *Orchestrator
	Log          *zap.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Options Options
}

// Run executes the pipeline. Every outcome except a malformed input line is
// a nil return: a helper that has nothing to contribute must not fail the
// git operation. Early exits write nothing to the protocol stream.
func (p *Pipeline) Run(ctx context.Context) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	req, err := protocol.Parse(p.Stdin)
	if err != nil {
		return err
	}

	if !protocol.SupportsAuthType(req) {
		log.Debug("git did not announce the authtype capability")
		return nil
	}
	if !protocol.OffersBearer(req) {
		log.Debug("server offered no Bearer challenge")
		return nil
	}

	resolver := identity.Resolver{Config: p.Config, Log: log}
	id := resolver.Resolve(ctx, req)
	if id.ClientID == "" {
		_, _ = fmt.Fprintln(p.Stderr, "Missing Microsoft Entra client id needed by git-credential-msal")
	}
	if id.TenantID == "" {
		_, _ = fmt.Fprintln(p.Stderr, "Missing Microsoft Entra tenant id needed by git-credential-msal")
	}
	if !id.Complete() {
		return nil
	}

	// Browsers spawned during the interactive flow must not be able to
	// write onto the protocol stream (Chrome prints "Opening in existing
	// browser session" to stdout).
	if err := markStdoutNonInheritable(); err != nil {
		log.Debug("could not make stdout non-inheritable", zap.Error(err))
	}

	resp, ok := p.Orchestrator.Acquire(ctx, id, p.Options)
	if !ok {
		return nil
	}
	return resp.Write(p.Stdout)
}
