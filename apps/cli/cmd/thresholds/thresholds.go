package thresholds

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// Command groups threshold administration helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Manage approval amount thresholds",
	}

	cmd.AddCommand(listCommand())
	cmd.AddCommand(createCommand())
	cmd.AddCommand(deactivateCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var (
		databaseURL     string
		includeInactive bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List configured thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, closeFn, err := openStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			thresholds, err := store.ListThresholds(ctx, !includeInactive)
			if err != nil {
				return fmt.Errorf("list thresholds: %w", err)
			}

			if len(thresholds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no thresholds configured")
				return nil
			}

			for _, t := range thresholds {
				maxLabel := "unbounded"
				if t.MaxAmount != nil {
					maxLabel = t.MaxAmount.StringFixed(2)
				}
				line := fmt.Sprintf("%s  %-24s %s  [%s, %s]", t.ID, t.Name, t.ApprovalType, t.MinAmount.StringFixed(2), maxLabel)
				if t.IsActive {
					color.Green(line)
				} else {
					color.Red("%s (inactive)", line)
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	c.Flags().BoolVar(&includeInactive, "include-inactive", false, "also show deactivated thresholds")
	return c
}

func createCommand() *cobra.Command {
	var (
		databaseURL        string
		name               string
		minAmount          string
		maxAmount          string
		approvalType       string
		requiresSequential bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a threshold band",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			minValue, err := decimal.NewFromString(minAmount)
			if err != nil {
				return fmt.Errorf("invalid min amount: %w", err)
			}

			var maxValue *decimal.Decimal
			if maxAmount != "" {
				parsed, parseErr := decimal.NewFromString(maxAmount)
				if parseErr != nil {
					return fmt.Errorf("invalid max amount: %w", parseErr)
				}
				maxValue = &parsed
			}

			if !persistence.ValidApprovalType(persistence.ApprovalType(approvalType)) {
				return fmt.Errorf("invalid approval type %q (use dfo or ho)", approvalType)
			}

			store, closeFn, err := openStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			threshold, err := store.CreateThreshold(ctx, persistence.CreateThresholdParams{
				ID:                 uuid.New(),
				Name:               name,
				MinAmount:          minValue,
				MaxAmount:          maxValue,
				ApprovalType:       persistence.ApprovalType(approvalType),
				RequiresSequential: requiresSequential,
			})
			if err != nil {
				return fmt.Errorf("create threshold: %w", err)
			}

			color.Green("created threshold %s (%s)", threshold.Name, threshold.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	c.Flags().StringVar(&name, "name", "", "threshold name")
	c.Flags().StringVar(&minAmount, "min", "", "inclusive minimum amount")
	c.Flags().StringVar(&maxAmount, "max", "", "inclusive maximum amount (omit for unbounded)")
	c.Flags().StringVar(&approvalType, "type", "", "approval type (dfo or ho)")
	c.Flags().BoolVar(&requiresSequential, "sequential", false, "require sequential sign-off")

	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("min")
	_ = c.MarkFlagRequired("type")
	return c
}

func deactivateCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "deactivate <threshold-id>",
		Short: "Deactivate a threshold band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid threshold id: %w", err)
			}

			store, closeFn, err := openStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			threshold, err := store.DeactivateThreshold(ctx, id)
			if err != nil {
				return fmt.Errorf("deactivate threshold: %w", err)
			}

			color.Yellow("deactivated threshold %s (%s)", threshold.Name, threshold.ID)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	return c
}

func openStore(ctx context.Context, databaseURL string) (*persistence.ThresholdStore, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewThresholdStore(pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init threshold store: %w", err)
	}

	return store, func() { persistence.ClosePool(pool) }, nil
}
