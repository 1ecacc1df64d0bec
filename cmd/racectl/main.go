// Package main provides racectl, the command line interface to the race escrow.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yourusername/race-escrow/internal/config"
	"github.com/yourusername/race-escrow/internal/database"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/ledger"
	"github.com/yourusername/race-escrow/internal/logger"
	"github.com/yourusername/race-escrow/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	envFile    string
	cfg        *config.Config
	appLog     *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "racectl",
	Short:         "Operate the two-player race escrow",
	Long:          `Creates, joins, reports, settles and pays out race wagers held in escrow accounts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(); err != nil {
			return err
		}
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLog = newLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before configuration")
	rootCmd.Version = fmt.Sprintf("%s (%s)", Version, GitCommit)

	rootCmd.AddCommand(
		migrateCmd,
		fundCmd,
		createCmd,
		joinCmd,
		submitCmd,
		settleCmd,
		claimCmd,
		showCmd,
		overviewCmd,
		serveCmd,
		simulateCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadEnvFile loads the dotenv file if it exists. Variables already set win.
func loadEnvFile() error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(ctx, cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	return config.ValidateEnvironment(cfg)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	// Command output goes to stdout, so logs go to stderr.
	l := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	l.SetOutput(os.Stderr)
	return l
}

// runtime holds the dependencies opened for one command
type runtime struct {
	backend ledger.Backend
	db      *database.DB
	program *escrow.Program
	service *service.RaceService
}

func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// openRuntime connects to the configured ledger and wires the service
func openRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := database.Initialize(connectCtx, cfg, appLog)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.db = db
		rt.backend = ledger.NewPostgresLedger(db)
	default:
		appLog.Warn("Using the in-memory ledger: state is lost when the process exits")
		rt.backend = ledger.NewMemoryLedger()
	}

	programID, err := cfg.ProgramID()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.program = escrow.NewProgram(programID, rt.backend, escrow.WithSelfJoinGuard(cfg.Program.RejectSelfJoin))
	rt.service = service.NewRaceService(
		rt.program,
		rt.backend,
		service.NewRaceCache(cfg.CacheTTL(), cfg.Cache.MaxSize),
		appLog,
		cfg.StallAfter(),
	)
	return rt, nil
}
