package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"luacrypt/store"
)

type rootFlags struct {
	configPath string
	listen     string
	dbDriver   string
	dbDSN      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:          "luacrypt",
		Short:        "Lua script protection dashboard",
		Long:         "Store, obfuscate and serve Lua scripts to a game client, with access logging.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides HTTP_LISTENER)")
	rootCmd.PersistentFlags().StringVar(&flags.dbDriver, "db-driver", "", "Database driver: sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&flags.dbDSN, "db-dsn", "", "Database DSN or sqlite file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "obfuscate [file]",
			Short: "Wrap a Lua file in the protected loader and print it",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTransform(cmd, flags, args, false)
			},
		},
		&cobra.Command{
			Use:   "deobfuscate [file]",
			Short: "Recover the source from a protected loader",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTransform(cmd, flags, args, true)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Show the effective configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runConfig(cmd, flags)
			},
		},
	)

	return rootCmd
}

// loadConfig reads the config and applies command line overrides.
func loadConfig(flags *rootFlags) (*Config, error) {
	cfg, err := NewConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.listen != "" {
		cfg.HTTP.Listen = flags.listen
	}
	if flags.dbDriver != "" {
		cfg.Database.Driver = flags.dbDriver
	}
	if flags.dbDSN != "" {
		cfg.Database.DSN = flags.dbDSN
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, flags *rootFlags) error {
	config, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if err = config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, sqlDB, err := store.Open(config.Database.Driver, config.Database.DSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	logger := setupLogger(config, cmd.OutOrStdout(), nil)

	if err = dbInit(ctx, db, logger, config); err != nil {
		logger.Error().Err(err).Msg("Failed to initialise database")
		return err
	}

	// Tables exist now, so the persistent sink can be attached.
	if config.Log.Persist {
		logger = setupLogger(config, cmd.OutOrStdout(), db)
	}

	if config.Auth.Enforce {
		logger.Info().Msg("Server-side session enforcement is on")
	} else {
		logger.Warn().Msg("Dashboard API is not protected server-side; set AUTH_ENFORCE=true to require session tokens")
	}

	server, err := NewServer(config, db, sqlDB, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create server")
		return err
	}

	return server.Start(ctx)
}

func runTransform(cmd *cobra.Command, flags *rootFlags, args []string, reverse bool) error {
	config, err := loadConfig(flags)
	if err != nil {
		return err
	}

	if err = config.validateObfuscator(); err != nil {
		return err
	}

	input, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	o := config.NewObfuscator()

	if !reverse {
		if input == "" {
			return fmt.Errorf("no code provided")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), o.Obfuscate(input))
		return err
	}

	source, err := o.Deobfuscate(input)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), source)
	return err
}

func runConfig(cmd *cobra.Command, flags *rootFlags) error {
	config, err := loadConfig(flags)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "  [HTTP]")
	fmt.Fprintf(out, "    Listen:       %s\n", config.HTTP.Listen)
	fmt.Fprintf(out, "    Public URL:   %s\n", orDash(config.HTTP.PublicURL))
	fmt.Fprintf(out, "    Trust proxy:  %v\n", config.HTTP.TrustProxy)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  [Database]")
	fmt.Fprintf(out, "    Driver:       %s\n", config.Database.Driver)
	fmt.Fprintf(out, "    DSN:          %s\n", maskDSN(config.Database.Driver, config.Database.DSN))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  [Auth]")
	fmt.Fprintf(out, "    Password:     %s\n", maskSecret(config.Auth.Password))
	fmt.Fprintf(out, "    Hash:         %s\n", maskSecret(config.Auth.PasswordHash))
	fmt.Fprintf(out, "    Enforce:      %v\n", config.Auth.Enforce)
	fmt.Fprintf(out, "    JWT secret:   %s\n", maskSecret(config.Auth.JWTSecret))
	fmt.Fprintf(out, "    Token TTL:    %s\n", config.Auth.TokenTTL)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  [Obfuscator]")
	fmt.Fprintf(out, "    Key:          %d\n", config.Obfuscator.Key)
	fmt.Fprintf(out, "    Char codes:   %v\n", config.Obfuscator.CharCodes)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  [Classifier]")
	fmt.Fprintf(out, "    Browser:      %s\n", strings.Join(config.Classifier.Browser, ", "))
	fmt.Fprintf(out, "    Client:       %s\n", strings.Join(config.Classifier.Client, ", "))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  [Log]")
	fmt.Fprintf(out, "    Level:        %s\n", config.Log.Level)
	fmt.Fprintf(out, "    Persist:      %v\n", config.Log.Persist)

	if err = config.Validate(); err != nil {
		fmt.Fprintf(out, "\n  Invalid: %v\n", err)
	}

	return nil
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func maskSecret(s string) string {
	if s == "" {
		return "not configured"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskDSN hides the password in a postgres URL.
func maskDSN(driver, dsn string) string {
	if driver != store.DriverPostgres {
		return dsn
	}

	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "****"
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, _ := strings.Cut(userinfo, ":")
	return scheme + "://" + user + ":****@" + host
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
