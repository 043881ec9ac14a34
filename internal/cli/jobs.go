package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowan/backstop/internal/core/domain"
	"github.com/rowan/backstop/internal/core/repository"
)

var jobStatusFilter string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage backup jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		filter := repository.JobFilter{}
		if jobStatusFilter != "" {
			status := domain.JobStatus(jobStatusFilter)
			filter.Status = &status
		}

		jobs, err := services.JobService.ListJobs(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		fmt.Printf("%-36s  %-20s  %-12s  %-8s  %s\n", "ID", "NAME", "TYPE", "STATUS", "NEXT RUN")
		for _, job := range jobs {
			nextRun := "-"
			if job.NextRunAt != nil {
				nextRun = job.NextRunAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-36s  %-20s  %-12s  %-8s  %s\n", job.ID, job.Name, job.Type, job.Status, nextRun)
		}
		return nil
	},
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		job, err := services.JobService.PauseJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s is now %s\n", job.ID, job.Status)
		return nil
	},
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		job, err := services.JobService.ResumeJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s is now %s\n", job.ID, job.Status)
		return nil
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable <job-id>",
	Short: "Disable a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := initServices()
		if err != nil {
			return err
		}
		defer services.Close()

		job, err := services.JobService.DisableJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s is now %s\n", job.ID, job.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsPauseCmd)
	jobsCmd.AddCommand(jobsResumeCmd)
	jobsCmd.AddCommand(jobsDisableCmd)

	jobsListCmd.Flags().StringVar(&jobStatusFilter, "status", "", "Filter by status (active, paused, disabled, error)")
}
