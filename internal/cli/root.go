package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowan/backstop/internal/core/policy"
	"github.com/rowan/backstop/internal/core/repository"
	"github.com/rowan/backstop/internal/core/service"
	"github.com/rowan/backstop/internal/infrastructure/sqlite"
	"github.com/rowan/backstop/internal/logging"
	"github.com/rowan/backstop/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "backstop",
	Short: "Backstop - Backup orchestration and integrity verification",
	Long: `Backstop orchestrates backup jobs end to end and proves the results can
actually be restored.

It provides:
- Scheduled and on-demand backup runs with compression and encryption
- Checksum verification of every produced archive
- Integrity and restore tests against completed runs
- Full, partial and selective restores with a sandbox for drills
- Retention sweeps per job retention policy
- A REST API for remote management`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "keygen" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/backstop/config.yml)")
}

// initServices initializes the database, repositories and services
func initServices() (*Services, error) {
	logger := logging.NewLogger(cfg)

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	jobRepo := sqlite.NewJobRepository(db)
	runRepo := sqlite.NewRunRepository(db)
	testRepo := sqlite.NewTestRepository(db)
	restoreRepo := sqlite.NewRestoreRepository(db)

	evaluator := newEvaluator(cfg)

	engine := service.NewExecutionEngine(jobRepo, runRepo, logger)
	jobService := service.NewJobService(jobRepo)
	testService := service.NewTestService(runRepo, jobRepo, testRepo, evaluator, cfg.SandboxDir, logger)
	restoreService := service.NewRestoreService(runRepo, restoreRepo, jobRepo, evaluator, cfg.SandboxDir, logger)
	monitoringService := service.NewMonitoringService(jobRepo, runRepo, testRepo)
	retentionService := service.NewRetentionService(jobRepo, runRepo, logger)

	return &Services{
		DB:                db,
		Logger:            logger,
		JobRepo:           jobRepo,
		RunRepo:           runRepo,
		Evaluator:         evaluator,
		Engine:            engine,
		JobService:        jobService,
		TestService:       testService,
		RestoreService:    restoreService,
		MonitoringService: monitoringService,
		RetentionService:  retentionService,
	}, nil
}

// newEvaluator seeds the policy evaluator from config: explicit subject
// lists plus one low-priority policy allowing the configured operations.
func newEvaluator(cfg *config.Config) *policy.Evaluator {
	evaluator := policy.NewEvaluator()
	for _, id := range cfg.PolicyWhitelist {
		evaluator.Whitelist(id)
	}
	for _, id := range cfg.PolicyBlacklist {
		evaluator.Blacklist(id)
	}
	for _, id := range cfg.PolicyQuarantine {
		evaluator.Quarantine(id)
	}

	if len(cfg.PolicyAllowedOperations) > 0 {
		evaluator.AddPolicy(policy.Policy{
			ID:       "config-allowed-operations",
			Name:     "operations allowed by configuration",
			Priority: 0,
			Enabled:  true,
			Rules: []policy.Rule{{
				Name:   "allow-configured-operations",
				Action: policy.DecisionAllow,
				Conditions: []policy.Condition{
					policy.In{Key: "operation", Values: cfg.PolicyAllowedOperations},
				},
			}},
		})
	}
	return evaluator
}

// Services holds all initialized services
type Services struct {
	DB                *sqlite.DB
	Logger            zerolog.Logger
	JobRepo           repository.JobRepository
	RunRepo           repository.RunRepository
	Evaluator         *policy.Evaluator
	Engine            *service.ExecutionEngine
	JobService        *service.JobService
	TestService       *service.TestService
	RestoreService    *service.RestoreService
	MonitoringService *service.MonitoringService
	RetentionService  *service.RetentionService
}

// NewScheduler builds a scheduler over the initialized repositories
func (s *Services) NewScheduler(interval time.Duration) *service.Scheduler {
	return service.NewScheduler(s.JobRepo, s.Engine, s.Logger, interval)
}

// Close closes all resources
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
