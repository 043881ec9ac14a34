package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/service"
)

var (
	restoreType     string
	restoreTarget   string
	restorePatterns []string
	restorePaths    []string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <run-id>",
	Short: "Restore files from a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		rtype := domain.RestoreType(restoreType)
		if rtype != domain.RestoreTypeTest && restoreTarget == "" {
			return fmt.Errorf("--target is required for non-test restores")
		}

		restore, err := services.RestoreService.Restore(
			cmd.Context(),
			args[0],
			rtype,
			restoreTarget,
			service.RestoreSelection{Patterns: restorePatterns, Paths: restorePaths},
		)
		if err != nil {
			return fmt.Errorf("failed to restore: %w", err)
		}

		fmt.Printf("Restore %s finished with status %s\n", restore.ID, restore.Status)
		fmt.Printf("Restored %d files to %s\n", restore.RestoredFiles, restore.TargetPath)
		for _, e := range restore.Errors {
			fmt.Printf("Error [%s/%s]: %s\n", e.Type, e.Severity, e.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreType, "type", "full", "Restore type (full, partial, selective, test)")
	restoreCmd.Flags().StringVar(&restoreTarget, "target", "", "Target directory")
	restoreCmd.Flags().StringSliceVar(&restorePatterns, "pattern", nil, "Glob pattern to restore (repeatable)")
	restoreCmd.Flags().StringSliceVar(&restorePaths, "path", nil, "Exact archive path to restore (repeatable)")
}
