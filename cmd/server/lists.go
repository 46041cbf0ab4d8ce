package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/domain"
)

var (
	listsOrg        string
	listsID         string
	listsEntityType string
)

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Maintain smart lists",
}

var listsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the cached count of one smart list",
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := uuid.Parse(listsOrg)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		id, err := uuid.Parse(listsID)
		if err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}

		reg, err := loadRegistry(cfg.Registry.Path)
		if err != nil {
			return err
		}
		s, err := openStores(cmd.Context(), cfg.Database, false)
		if err != nil {
			return err
		}
		defer s.close()

		result, err := newSmartListService(reg, s).Refresh(cmd.Context(), org, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var listsRefreshAllCmd = &cobra.Command{
	Use:   "refresh-all",
	Short: "Recompute the cached counts of every smart list in an organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		org, err := uuid.Parse(listsOrg)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		var entityType domain.EntityType
		if listsEntityType != "" {
			if entityType, err = domain.ParseEntityType(listsEntityType); err != nil {
				return err
			}
		}

		reg, err := loadRegistry(cfg.Registry.Path)
		if err != nil {
			return err
		}
		s, err := openStores(cmd.Context(), cfg.Database, false)
		if err != nil {
			return err
		}
		defer s.close()

		result, err := newSmartListService(reg, s).RefreshAll(cmd.Context(), org, entityType, cfg.SmartLists.RefreshConcurrency)
		if err != nil {
			return err
		}
		for _, failure := range result.Failed {
			logger.Warn("smart list not refreshed",
				zap.String("list_id", failure.ListID.String()),
				zap.Error(failure.Err),
			)
		}
		if err := printJSON(cmd, result.Refreshed); err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d smart lists failed to refresh", len(result.Failed))
		}
		return nil
	},
}

func printJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func init() {
	listsCmd.PersistentFlags().StringVar(&listsOrg, "org", "", "organization id")
	_ = listsCmd.MarkPersistentFlagRequired("org")

	listsRefreshCmd.Flags().StringVar(&listsID, "id", "", "smart list id")
	_ = listsRefreshCmd.MarkFlagRequired("id")
	listsRefreshAllCmd.Flags().StringVar(&listsEntityType, "type", "", "only refresh lists of this entity type")

	listsCmd.AddCommand(listsRefreshCmd, listsRefreshAllCmd)
	rootCmd.AddCommand(listsCmd)
}
