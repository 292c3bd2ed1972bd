package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schoolhub/portal/config"
	"github.com/schoolhub/portal/internal/adapters/filestore"
	"github.com/schoolhub/portal/internal/adapters/gateway"
	"github.com/schoolhub/portal/internal/service"
)

// cliConfig is the part of the portal configuration the CLI reads from the environment.
type cliConfig struct {
	Gateway     config.GatewayConfig          `envPrefix:"GATEWAY_"`
	Credentials config.CredentialStoreConfig `envPrefix:"CREDENTIAL_"`
}

// cli carries the resolved flags and shared clients of one invocation.
type cli struct {
	cfg     cliConfig
	verbose bool
	out     io.Writer
	logger  *slog.Logger

	gatewayURL string
	credFile   string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "SchoolHub portal client",
		Long: `portalctl signs in to the SchoolHub gateway and browses the resources of the
signed-in role. The credential is kept in a local file between invocations, so every
command runs against the same session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.gatewayURL, "gateway", "", "gateway base URL (default $GATEWAY_BASE_URL or http://localhost:8001/api)")
	flags.StringVar(&c.credFile, "credentials", "", "credential file (default $CREDENTIAL_FILE or ~/.schoolhub/credentials.json)")
	flags.DurationVar(&c.timeout, "timeout", 0, "gateway request timeout (default $GATEWAY_TIMEOUT or 10s)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newMenuCmd(c),
		newOpenCmd(c),
		newGetCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	c.out = cmd.OutOrStdout()

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	var sink io.Writer = io.Discard
	if c.verbose {
		sink = os.Stderr
	}
	c.logger = slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level}))

	if err := env.Parse(&c.cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if c.gatewayURL != "" {
		c.cfg.Gateway.BaseURL = c.gatewayURL
	}
	if c.credFile != "" {
		c.cfg.Credentials.File = c.credFile
	}
	if c.timeout > 0 {
		c.cfg.Gateway.Timeout = c.timeout
	}
	c.cfg.Gateway.Sanitize()
	c.cfg.Credentials.Sanitize()
	return c.cfg.Gateway.Validate()
}

// session builds the manager of this process's client context.
func (c *cli) session() (*service.SessionManager, *gateway.Client, error) {
	store, err := filestore.New(c.cfg.Credentials.File)
	if err != nil {
		return nil, nil, err
	}
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL: c.cfg.Gateway.BaseURL,
		Timeout: c.cfg.Gateway.Timeout,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	m := service.NewSessionManager(service.SessionManagerOptions{
		Store:    store,
		Resolver: gw,
		Gateway:  gw,
		Logger:   c.logger,
	})
	c.logger.Debug("client context ready", "credentials", store.Path(), "gateway", c.cfg.Gateway.BaseURL)
	return m, gw, nil
}

var errNotLoggedIn = errors.New("not logged in; run portalctl login")

func (c *cli) print(s string) {
	_, _ = io.WriteString(c.out, s)
}

func (c *cli) table(data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	c.print(s + "\n")
	return nil
}
