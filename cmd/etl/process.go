package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/feedyard/feedlot-etl/internal/checksum"
	"github.com/feedyard/feedlot-etl/internal/domain"
	"github.com/feedyard/feedlot-etl/internal/lifecycle"
)

func processCmd(configPath *string) *cobra.Command {
	var (
		orgFlag      string
		pipelineFlag string
		forceFlag    bool
		reasonFlag   string
		actorFlag    string
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Process one uploaded export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orgID, err := uuid.Parse(orgFlag)
			if err != nil {
				return fmt.Errorf("invalid organization id %q: %w", orgFlag, err)
			}

			pipeline := domain.PipelineFeedDeviation
			switch pipelineFlag {
			case "", string(domain.PipelineFeedDeviation):
			case string(domain.PipelinePenTreatment):
				pipeline = domain.PipelinePenTreatment
			default:
				return fmt.Errorf("unknown pipeline %q", pipelineFlag)
			}

			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read upload: %w", err)
			}

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.runner.ProcessUpload(ctx, lifecycle.UploadRequest{
				OrganizationID: orgID,
				FileName:       filepath.Base(args[0]),
				Pipeline:       pipeline,
				Payload:        payload,
				Force: checksum.Force{
					Enabled: forceFlag,
					Reason:  reasonFlag,
					Actor:   actorFlag,
				},
			})
			if report != nil {
				out, _ := json.MarshalIndent(report, "", "  ")
				fmt.Println(string(out))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&orgFlag, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&pipelineFlag, "pipeline", string(domain.PipelineFeedDeviation), "pipeline type: feed_deviation or pen_treatment")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "force reprocessing of duplicate content")
	cmd.Flags().StringVar(&reasonFlag, "reason", "", "reason for forced reprocessing")
	cmd.Flags().StringVar(&actorFlag, "actor", "", "actor performing the forced reprocessing")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func retryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "List failed files whose retry time has come",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			states, err := a.runner.ListRetryable(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Println("no files due for retry")
				return nil
			}
			for _, state := range states {
				fmt.Printf("%s\t%s\t%s\tattempt %d\t%s\n",
					state.ID, state.FileName, state.State, state.RetryCount, state.LastError)
			}
			return nil
		},
	}
}

func cancelCmd(configPath *string) *cobra.Command {
	var actorFlag string

	cmd := &cobra.Command{
		Use:   "cancel <file-id>",
		Short: "Cancel a file that is not mid-stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid file id %q: %w", args[0], err)
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runner.Cancel(cmd.Context(), fileID, actorFlag)
		},
	}
	cmd.Flags().StringVar(&actorFlag, "actor", "", "actor requesting cancellation")
	return cmd
}
