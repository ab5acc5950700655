package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arunavo4/turns-management-sub001/platform/go/persistence"
)

func band(name string, min string, max *string, approvalType persistence.ApprovalType) persistence.ApprovalThreshold {
	threshold := persistence.ApprovalThreshold{
		Name:         name,
		MinAmount:    decimal.RequireFromString(min),
		ApprovalType: approvalType,
		IsActive:     true,
	}
	if max != nil {
		m := decimal.RequireFromString(*max)
		threshold.MaxAmount = &m
	}
	return threshold
}

func strPtr(s string) *string { return &s }

func TestRequiredTypes(t *testing.T) {
	t.Parallel()

	thresholds := []persistence.ApprovalThreshold{
		band("dfo band", "3000", strPtr("9999.99"), persistence.ApprovalTypeDFO),
		band("ho band", "10000", nil, persistence.ApprovalTypeHO),
	}

	tests := []struct {
		name   string
		amount string
		want   []persistence.ApprovalType
	}{
		{name: "below all bands", amount: "2999.99", want: nil},
		{name: "inclusive lower bound", amount: "3000", want: []persistence.ApprovalType{persistence.ApprovalTypeDFO}},
		{name: "inside dfo band", amount: "5000", want: []persistence.ApprovalType{persistence.ApprovalTypeDFO}},
		{name: "inclusive upper bound", amount: "9999.99", want: []persistence.ApprovalType{persistence.ApprovalTypeDFO}},
		{name: "unbounded band lower edge", amount: "10000", want: []persistence.ApprovalType{persistence.ApprovalTypeHO}},
		{name: "far above", amount: "250000", want: []persistence.ApprovalType{persistence.ApprovalTypeHO}},
		{name: "zero amount", amount: "0", want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := requiredTypes(thresholds, decimal.RequireFromString(tc.amount))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRequiredTypesOverlappingBandsBothFire(t *testing.T) {
	t.Parallel()

	thresholds := []persistence.ApprovalThreshold{
		band("dfo band", "3000", nil, persistence.ApprovalTypeDFO),
		band("ho band", "10000", nil, persistence.ApprovalTypeHO),
	}

	got := requiredTypes(thresholds, decimal.RequireFromString("20000"))
	require.Equal(t, []persistence.ApprovalType{persistence.ApprovalTypeDFO, persistence.ApprovalTypeHO}, got)
}

func TestRequiredTypesDeduplicatesSameType(t *testing.T) {
	t.Parallel()

	thresholds := []persistence.ApprovalThreshold{
		band("dfo low", "0", strPtr("5000"), persistence.ApprovalTypeDFO),
		band("dfo wide", "1000", nil, persistence.ApprovalTypeDFO),
	}

	got := requiredTypes(thresholds, decimal.RequireFromString("2000"))
	require.Equal(t, []persistence.ApprovalType{persistence.ApprovalTypeDFO}, got)
}

func TestRequiredTypesSkipsInactiveBands(t *testing.T) {
	t.Parallel()

	inactive := band("dfo band", "0", nil, persistence.ApprovalTypeDFO)
	inactive.IsActive = false

	got := requiredTypes([]persistence.ApprovalThreshold{inactive}, decimal.RequireFromString("5000"))
	require.Empty(t, got)
}
