package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepJobID string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune expired runs per retention policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		var pruned int
		if sweepJobID != "" {
			pruned, err = services.RetentionService.SweepJob(cmd.Context(), sweepJobID)
		} else {
			pruned, err = services.RetentionService.SweepAll(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("failed to sweep: %w", err)
		}

		fmt.Printf("Pruned %d expired runs\n", pruned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepJobID, "job-id", "", "Sweep a single job")
}
