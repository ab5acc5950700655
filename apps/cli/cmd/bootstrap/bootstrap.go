package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// Command groups bootstrap helpers (schema DDL, stage seeding).
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap database schema and default workflow stages",
	}

	cmd.AddCommand(schemaCommand())
	cmd.AddCommand(stagesCommand())
	return cmd
}

func schemaCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "schema",
		Short: "Apply the embedded schema DDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapSchema(ctx, pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}

			color.Green("schema applied")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	return c
}

// defaultStages is the seed workflow: draft intake through final completion.
// Key, sequence, requiresApproval, requiresVendor, requiresAmount,
// requiresLockBox, isFinal, isDefault, autoStatus.
var defaultStages = []persistence.CreateStageParams{
	{Name: "Draft", Key: "draft", Sequence: 10, IsDefault: true, AutoStatus: autoStatus(persistence.AutoStatusDraft)},
	{Name: "Scope Review", Key: "scope_review", Sequence: 20, RequiresAmount: true, AutoStatus: autoStatus(persistence.AutoStatusActive)},
	{Name: "Approval", Key: "approval", Sequence: 30, RequiresApproval: true, RequiresAmount: true, AutoStatus: autoStatus(persistence.AutoStatusPending)},
	{Name: "In Progress", Key: "in_progress", Sequence: 40, RequiresVendor: true, AutoStatus: autoStatus(persistence.AutoStatusActive)},
	{Name: "Final Inspection", Key: "final_inspection", Sequence: 50, RequiresLockBox: true, AutoStatus: autoStatus(persistence.AutoStatusActive)},
	{Name: "Complete", Key: "complete", Sequence: 60, IsFinal: true, AutoStatus: autoStatus(persistence.AutoStatusCompleted)},
}

func stagesCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "stages",
		Short: "Seed the default workflow stages",
		Long:  "Seed the default workflow stages. Stages that already exist (by key) are left alone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			stageStore, err := persistence.NewStageStore(pool)
			if err != nil {
				return fmt.Errorf("init stage store: %w", err)
			}

			existing, err := stageStore.ListStages(ctx, true)
			if err != nil {
				return fmt.Errorf("list stages: %w", err)
			}
			existingKeys := map[string]bool{}
			for _, stage := range existing {
				existingKeys[stage.Key] = true
			}

			created := 0
			for _, params := range defaultStages {
				if existingKeys[params.Key] {
					color.Yellow("stage %s already exists, skipping", params.Key)
					continue
				}
				params.ID = uuid.New()
				if _, err := stageStore.CreateStage(ctx, params); err != nil {
					return fmt.Errorf("create stage %s: %w", params.Key, err)
				}
				color.Green("created stage %s", params.Key)
				created++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d stages created, %d skipped\n", created, len(defaultStages)-created)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	return c
}

func autoStatus(s persistence.AutoStatus) *persistence.AutoStatus {
	return &s
}
