package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/git-credential-msal/pkg/cache"
	"github.com/telekom/git-credential-msal/pkg/gitconfig"
	"github.com/telekom/git-credential-msal/pkg/helper"
)

// Config carries the process streams so tests can substitute buffers.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig binds the real process streams.
func DefaultConfig() Config {
	return Config{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// NewRootCommand builds the helper's command tree. Git invokes the binary
// with one positional command token; only `get` produces credentials, any
// other token is a silent no-op because this helper cannot store or erase.
func NewRootCommand(cfg Config) *cobra.Command {
	var (
		deviceCode bool
		insecure   bool
		noBrowser  bool
		verbose    bool
		cacheDir   string
	)

	root := &cobra.Command{
		Use:   "git-credential-msal <command>",
		Short: "git credential helper for Microsoft Entra ID",
		Long: "A git credential helper that answers Bearer challenges from\n" +
			"Microsoft Entra ID protected remotes with an OIDC identity token.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if !deviceCode {
				deviceCode = envBool("GIT_CREDENTIAL_MSAL_DEVICE_CODE")
			}
			if !insecure {
				insecure = envBool("GIT_CREDENTIAL_MSAL_INSECURE")
			}
			if !noBrowser {
				noBrowser = envBool("GIT_CREDENTIAL_MSAL_NO_BROWSER")
			}
			if !verbose {
				verbose = envBool("GIT_CREDENTIAL_MSAL_VERBOSE")
			}
			if cacheDir == "" {
				cacheDir = cache.DefaultDir()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)
			defer func() {
				_ = log.Sync()
			}()

			if args[0] != "get" {
				log.Debug("nothing to do for command", zap.String("command", args[0]))
				return nil
			}

			store := cache.New(cacheDir, nil, log)
			pipeline := &helper.Pipeline{
				Config: gitconfig.NewCLI(nil, log),
				Orchestrator: &helper.Orchestrator{
					Store:  store,
					Stderr: cfg.Stderr,
					Log:    log,
				},
				Log:    log,
				Stdin:  cfg.Stdin,
				Stdout: cfg.Stdout,
				Stderr: cfg.Stderr,
				Options: helper.Options{
					DeviceCode:    deviceCode,
					AllowInsecure: insecure,
					NoBrowser:     noBrowser,
				},
			}
			return pipeline.Run(cmd.Context())
		},
	}

	root.Flags().BoolVarP(&deviceCode, "device-code", "d", false, "Use the device-code flow instead of a browser")
	root.Flags().BoolVarP(&insecure, "insecure", "i", false, "Permit plaintext token cache fallback when no secure store is available")
	root.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug diagnostics on stderr")
	root.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory override")

	root.AddCommand(
		NewVersionCommand(cfg),
		NewCompletionCommand(cfg),
	)

	return root
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func envBool(name string) bool {
	return strings.EqualFold(os.Getenv(name), "true")
}
