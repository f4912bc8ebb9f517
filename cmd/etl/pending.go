package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func pendingCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Review queue for unknown dimension codes",
	}
	cmd.AddCommand(pendingListCmd(configPath))
	cmd.AddCommand(pendingResolveCmd(configPath))
	cmd.AddCommand(pendingRejectCmd(configPath))
	return cmd
}

func pendingListCmd(configPath *string) *cobra.Command {
	var orgFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open pending entries for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(orgFlag)
			if err != nil {
				return fmt.Errorf("invalid organization id %q: %w", orgFlag, err)
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.resolver.ListPending(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no pending entries")
				return nil
			}
			for _, entry := range entries {
				fmt.Printf("%s\t%s\t%s\t%s\n", entry.ID, entry.Type, entry.Code, entry.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orgFlag, "org", "", "organization id (required)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func pendingResolveCmd(configPath *string) *cobra.Command {
	var (
		valueFlag string
		actorFlag string
	)

	cmd := &cobra.Command{
		Use:   "resolve <pending-id>",
		Short: "Resolve a pending entry to a dimension id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid pending id %q: %w", args[0], err)
			}
			value, err := uuid.Parse(valueFlag)
			if err != nil {
				return fmt.Errorf("invalid dimension id %q: %w", valueFlag, err)
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			entry, err := a.resolver.ResolvePending(cmd.Context(), id, value, actorFlag)
			if err != nil {
				return err
			}
			fmt.Printf("resolved %s %s -> %s\n", entry.Type, entry.Code, value)
			return nil
		},
	}
	cmd.Flags().StringVar(&valueFlag, "value", "", "dimension id the code resolves to (required)")
	cmd.Flags().StringVar(&actorFlag, "actor", "", "reviewer performing the resolution (required)")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func pendingRejectCmd(configPath *string) *cobra.Command {
	var actorFlag string

	cmd := &cobra.Command{
		Use:   "reject <pending-id>",
		Short: "Reject a pending entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid pending id %q: %w", args[0], err)
			}
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			entry, err := a.resolver.RejectPending(cmd.Context(), id, actorFlag)
			if err != nil {
				return err
			}
			fmt.Printf("rejected %s %s\n", entry.Type, entry.Code)
			return nil
		},
	}
	cmd.Flags().StringVar(&actorFlag, "actor", "", "reviewer performing the rejection (required)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
