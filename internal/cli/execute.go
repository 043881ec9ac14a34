package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var executeCmd = &cobra.Command{
	Use:   "execute <job-id>",
	Short: "Execute a backup job now",
	Long:  "Execute a backup job immediately and wait for the run to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		run, err := services.Engine.Execute(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to execute job: %w", err)
		}

		fmt.Printf("Run %s finished with status %s\n", run.ID, run.Status)
		fmt.Printf("Files: %d, size: %d bytes (%d compressed)\n", run.FileCount, run.Size, run.CompressedSize)
		if len(run.Warnings) > 0 {
			fmt.Printf("Warnings: %d\n", len(run.Warnings))
		}
		for _, e := range run.Errors {
			fmt.Printf("Error [%s/%s]: %s\n", e.Type, e.Severity, e.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)
}
