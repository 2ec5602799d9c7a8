/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vesting ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve      Run the HTTP API
  schedule   Print the derived schedule parameters and exit

STARTUP SEQUENCE (serve):
  1. Load configuration (defaults < config file < VESTING_* env < flags)
  2. Initialize SQLite store
  3. Bootstrap the token supply (first start only)
  4. Configure the vesting schedule and the allowance contract
  5. Configure HTTP router and start the solvency monitor
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the solvency monitor
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server serve --owner=0x8ba1f109551bD432803012645Ac136ddd64DBA72 --db=./data/vesting.db

  # In-memory, 10% first release then 9 monthly claims
  VESTING_SCHEDULE_FIRST_RELEASE_PERCENTAGE=10 \
  VESTING_SCHEDULE_NUMBER_OF_PERIODIC_CLAIM=9 \
  VESTING_SCHEDULE_PERIODIC_CLAIM_DURATION=720h \
  ./server serve --owner=0x8ba1f109551bD432803012645Ac136ddd64DBA72 --db=":memory:"

  Durations are seconds ("86400") or Go syntax ("24h").

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warp/vesting-ledger/allowance"
	"github.com/warp/vesting-ledger/api"
	"github.com/warp/vesting-ledger/config"
	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/store/sqlite"
	"github.com/warp/vesting-ledger/token"
	"github.com/warp/vesting-ledger/vesting"
)

func main() {
	v := viper.New()
	config.SetDefaults(v)

	if err := newRootCommand(v).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "server",
		Short:         "Token vesting ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(v, configFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.Int(config.KeyPort, 8080, "HTTP server port")
	flags.String(config.KeyDB, "vesting.db", "SQLite database path (\":memory:\" for in-memory)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String(config.KeyOwner, "", "Owner (administrator) address")
	flags.Uint64("first-release-percentage", 20, "Percent released at the first claim")
	flags.Duration("delay-after-first-release", 24*time.Hour, "Wait between the first and second claim")
	flags.Uint64("number-of-periodic-claim", 4, "Periodic claims after the first release")
	flags.Duration("periodic-claim-duration", 24*time.Hour, "Wait between periodic claims")

	bind := map[string]string{
		config.KeyPort:                   config.KeyPort,
		config.KeyDB:                     config.KeyDB,
		config.KeyLogLevel:               "log-level",
		config.KeyOwner:                  config.KeyOwner,
		config.KeyFirstReleasePercentage: "first-release-percentage",
		config.KeyDelayAfterFirstRelease: "delay-after-first-release",
		config.KeyNumberOfPeriodicClaim:  "number-of-periodic-claim",
		config.KeyPeriodicClaimDuration:  "periodic-claim-duration",
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newServeCommand(v), newScheduleCommand(v))
	return root
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func newScheduleCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Print the derived schedule parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSchedule(v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "first_release_percentage:       %d\n", s.FirstReleasePercentage)
			fmt.Fprintf(out, "periodic_claim_percentage:      %d\n", s.PeriodicClaimPercentage)
			fmt.Fprintf(out, "number_of_periodic_claim:       %d\n", s.NumberOfPeriodicClaim)
			fmt.Fprintf(out, "total_claims:                   %d\n", s.TotalClaims())
			fmt.Fprintf(out, "delay_after_first_release:      %s\n", s.DelayAfterFirstRelease)
			fmt.Fprintf(out, "periodic_claim_duration:        %s\n", s.PeriodicClaimDuration)
			fmt.Fprintf(out, "minimum_total_claimable_amount: %s\n", s.MinimumTotalClaimableAmount)
			return nil
		},
	}
}

func serve(cfg *config.Config) error {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx := context.Background()
	clock := generic.SystemClock{}

	store, err := sqlite.New(cfg.DB)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize database")
		return err
	}
	defer store.Close()

	ledger := token.NewLedger(store, cfg.Token.Symbol, cfg.Owner)
	minted, err := ledger.Bootstrap(ctx, cfg.Token.InitialSupply, clock.Now())
	if err != nil {
		logger.WithError(err).Error("Failed to bootstrap token supply")
		return err
	}
	if minted {
		logger.WithFields(logrus.Fields{
			"owner":  cfg.Owner.Hex(),
			"supply": cfg.Token.InitialSupply.String(),
			"symbol": cfg.Token.Symbol,
		}).Info("Minted initial token supply")
	}

	schedule, err := vesting.New(ctx, vesting.Config{
		Schedule: cfg.Schedule,
		Owner:    cfg.Owner,
		Account:  cfg.VestingAccount,
		Token:    ledger,
		Store:    store,
		Clock:    clock,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to configure vesting schedule")
		return err
	}

	contract, err := allowance.New(allowance.Config{
		Owner:   cfg.Owner,
		Account: cfg.AllowanceAccount,
		Token:   ledger,
		Store:   store,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to configure allowance contract")
		return err
	}

	handler := api.NewHandler(schedule, contract, ledger, logger)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	handler.Monitor.CheckInterval = cfg.MonitorInterval
	handler.Monitor.Start()
	defer handler.Monitor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		logger.WithError(err).Error("Server failed")
		return err
	case <-quit:
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return err
	}

	logger.Info("Server stopped")
	return nil
}
