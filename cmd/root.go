package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"zgate/internal/config"
	"zgate/internal/connection"
	"zgate/internal/gateway"
	"zgate/internal/logging"
)

// PasswordEnv names the environment variable consulted when --password is
// not given.
const PasswordEnv = "ZGATE_PASSWORD"

var (
	cfgFile  string
	profile  string
	password string
	verbose  bool
	logFile  string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "zgate",
	Short:         "z/OS resource gateway over z/OSMF",
	Long:          `zgate reads and writes datasets and members and runs jobs on z/OS through the z/OSMF REST services.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := logging.Configure(verbose, logFile)
		if err != nil {
			return err
		}
		logCloser = closer

		if cmd.Name() == "setup" {
			return nil
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if profile != "" {
			cfg.DefaultProfile = profile
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the status class of err onto a process exit code.
func exitCode(err error) int {
	switch gateway.HTTPStatus(err) {
	case http.StatusUnauthorized:
		return 3
	case http.StatusNotFound:
		return 4
	case http.StatusGatewayTimeout:
		return 5
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.zgateconfig)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile to use (overrides default)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "password for this invocation (default: $"+PasswordEnv+" or prompt)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log facility requests to stderr")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write JSON logs to this file")
}

func GetCurrentProfile() (*config.Profile, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg.GetProfile(cfg.DefaultProfile)
}

// openGateway builds the gateway from the loaded config and resolves the
// connection profile for this invocation.
func openGateway() (*gateway.Gateway, connection.Profile, error) {
	p, err := GetCurrentProfile()
	if err != nil {
		return nil, connection.Profile{}, err
	}
	if err := p.Validate(); err != nil {
		return nil, connection.Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	pw, err := resolvePassword(p)
	if err != nil {
		return nil, connection.Profile{}, err
	}

	return gateway.New(cfg.Gateway.Settings(), log.Logger), p.Connection(pw), nil
}

// resolvePassword takes the password from --password, then the
// environment, then a hidden terminal prompt.
func resolvePassword(p *config.Profile) (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password available: use --password or %s", PasswordEnv)
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", p.User, p.Host)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
