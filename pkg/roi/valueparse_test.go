package roi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePerHire_NonMonetaryKeywordYieldsZero(t *testing.T) {
	assert.Equal(t, 0.0, EstimatePerHire("$5,000 - $25,000 fidelity bond", "bonding", 20, false))
}

func TestEstimatePerHire_WithholdingsFormulaCapped(t *testing.T) {
	v := EstimatePerHire("10-year withholdings credit", "tax_credit", 50, false)
	assert.Equal(t, WithholdingsAnnualCap, v)
}

func TestEstimatePerHire_WithholdingsLowWageUncapped(t *testing.T) {
	v := EstimatePerHire("annual withholding credit", "tax_credit", 10, false)
	assert.InDelta(t, 10.0*40*52*WithholdingsTaxRate, v, 0.01)
}

func TestEstimatePerHire_DollarRangeMeanCappedNonDemo(t *testing.T) {
	v := EstimatePerHire("$30,000 - $40,000 multi-year grant", "training_grant", 20, false)
	assert.Equal(t, DefaultMaxCap, v)
}

func TestEstimatePerHire_DollarRangeMeanCappedDemo(t *testing.T) {
	v := EstimatePerHire("$30,000 - $40,000 multi-year grant", "training_grant", 20, true)
	assert.Equal(t, DemoMaxCap, v)
}

func TestEstimatePerHire_PlainRangeTakesMean(t *testing.T) {
	v := EstimatePerHire("$2,400 - $9,600 per hire", "tax_credit", 20, false)
	assert.Equal(t, (2400.0+9600.0)/2, v)
}

func TestEstimatePerHire_NoParsableAmountUsesWOTCBaseline(t *testing.T) {
	v := EstimatePerHire("reimbursement amount not specified", "wage_subsidy", 20, false)
	assert.Equal(t, WOTCBaseline, v)
}

func TestEstimatePerHire_VariesIsNonMonetaryFlooredByBenefitType(t *testing.T) {
	assert.Equal(t, 2000.0, EstimatePerHire("Varies", "tax_credit", 20, false))
}

func TestEstimatePerHire_FloorAppliesWhenComputedZero(t *testing.T) {
	assert.Equal(t, 2000.0, EstimatePerHire("building improvements grant", "tax_credit", 20, false))
	assert.Equal(t, 3000.0, EstimatePerHire("capital investment coverage", "wage_subsidy", 20, false))
	assert.Equal(t, 1500.0, EstimatePerHire("apprenticeship start-up support", "training_grant", 20, false))
	assert.Equal(t, 1000.0, EstimatePerHire("varies by program", "other", 20, false))
}

func TestEstimatePerHire_BondingBenefitTypeNeverFloored(t *testing.T) {
	assert.Equal(t, 0.0, EstimatePerHire("standard hiring credit", "bonding", 20, false))
}
