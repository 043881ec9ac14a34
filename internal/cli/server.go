package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowan/backstop/internal/api"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server and scheduler",
	Long:  "Start the REST API server, the job scheduler and the retention sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Start the job scheduler
		scheduler := services.NewScheduler(time.Duration(cfg.SchedulerInterval) * time.Second)
		scheduler.Start(ctx)
		defer scheduler.Stop()

		// Periodic retention sweeps
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := services.RetentionService.SweepAll(ctx); err != nil {
						services.Logger.Error().Err(err).Msg("retention sweep failed")
					}
				}
			}
		}()

		server := api.NewServer(
			cfg,
			services.JobService,
			services.Engine,
			services.TestService,
			services.RestoreService,
			services.MonitoringService,
			services.RunRepo,
		)

		serverErr := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		fmt.Println("Server is ready. Press Ctrl+C to stop.")

		select {
		case err := <-serverErr:
			return fmt.Errorf("server error: %w", err)
		case <-sigChan:
			fmt.Println("\nShutting down gracefully...")
		}

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		fmt.Println("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
