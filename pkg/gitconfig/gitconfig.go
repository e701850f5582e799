// Package gitconfig queries URL-scoped git configuration through the git
// binary itself, the same lookup `git config --get-urlmatch` performs.
package gitconfig

import (
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Source answers URL-scoped configuration lookups. A lookup either yields a
// value or nothing; lookup failures are indistinguishable from absence by
// contract.
type Source interface {
	GetURLMatch(ctx context.Context, url, key string) (string, bool)
}

// Runner executes an external command and returns its stdout. Failing
// commands return an error alongside whatever output was produced.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CLI is a Source backed by the git executable.
type CLI struct {
	run Runner
	log *zap.Logger
}

// NewCLI builds a Source that shells out to git. A nil runner uses
// exec.CommandContext directly.
func NewCLI(run Runner, log *zap.Logger) *CLI {
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CLI{run: run, log: log}
}

// GetURLMatch runs `git config --get-urlmatch <key> <url>`. A non-zero exit
// status or an empty result both mean the key is unset for that URL.
func (c *CLI) GetURLMatch(ctx context.Context, url, key string) (string, bool) {
	out, err := c.run(ctx, "git", "config", "--get-urlmatch", key, url)
	if err != nil {
		c.log.Debug("git config lookup failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	value := strings.TrimRight(string(out), "\r\n")
	if value == "" {
		return "", false
	}
	return value, true
}
