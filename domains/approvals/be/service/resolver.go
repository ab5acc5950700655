package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

// ResolveRequiredApprovals returns the approval types whose configured bands
// admit the given amount. A band admits an amount when minAmount <= amount and
// maxAmount is either unbounded or >= amount; both bounds are inclusive.
// Bands may overlap, in which case several types fire for the same amount:
// that is multi-tier sign-off, not a tie to break. The result is a
// deduplicated set.
func (s *service) ResolveRequiredApprovals(ctx context.Context, amount decimal.Decimal) ([]persistence.ApprovalType, error) {
	thresholds, err := s.repo.ListActiveThresholds(ctx)
	if err != nil {
		return nil, err
	}

	return requiredTypes(thresholds, amount), nil
}

func requiredTypes(thresholds []persistence.ApprovalThreshold, amount decimal.Decimal) []persistence.ApprovalType {
	seen := make(map[persistence.ApprovalType]struct{}, 2)
	var types []persistence.ApprovalType

	for _, threshold := range thresholds {
		if !threshold.IsActive {
			continue
		}
		if threshold.MinAmount.GreaterThan(amount) {
			continue
		}
		if threshold.MaxAmount != nil && amount.GreaterThan(*threshold.MaxAmount) {
			continue
		}

		if _, ok := seen[threshold.ApprovalType]; ok {
			continue
		}
		seen[threshold.ApprovalType] = struct{}{}
		types = append(types, threshold.ApprovalType)
	}

	return types
}
