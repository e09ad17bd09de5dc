package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
)

func checkSignal(t *testing.T, calc *ThresholdCalculator, symbol string) CheckResult {
	t.Helper()
	sig := models.NewSignal("strat-1", symbol, models.ActionEnter, models.DirectionBuy, 0.8, 0.8)
	result, err := calc.CheckSignal(context.Background(), sig)
	require.NoError(t, err)
	return result
}

func violationCodes(result CheckResult) []string {
	codes := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}

func TestCleanBookPasses(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		MaxSymbolExposurePct: 0.25,
		MaxTotalExposurePct:  1.0,
	})

	result := checkSignal(t, calc, "BTC-USD")
	assert.True(t, result.Passed)
	assert.Empty(t, result.Violations)
}

func TestBlockedSymbol(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		BlockedSymbols: []string{"DOGE-USD"},
	})

	result := checkSignal(t, calc, "DOGE-USD")
	assert.False(t, result.Passed)
	assert.Contains(t, violationCodes(result), "symbol_blocked")
	assert.Equal(t, 1.0, result.RiskLevel)

	assert.True(t, checkSignal(t, calc, "BTC-USD").Passed)
}

func TestSymbolExposureLimit(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		MaxSymbolExposurePct: 0.25,
		MaxTotalExposurePct:  1.0,
	})

	calc.RecordExposure("BTC-USD", 0.20)
	assert.True(t, checkSignal(t, calc, "BTC-USD").Passed)

	calc.RecordExposure("BTC-USD", 0.05) // at the limit now
	result := checkSignal(t, calc, "BTC-USD")
	assert.False(t, result.Passed)
	assert.Equal(t, []string{"symbol_exposure_limit"}, violationCodes(result))
	assert.Equal(t, 0.8, result.RiskLevel)

	// Another symbol is unaffected.
	assert.True(t, checkSignal(t, calc, "ETH-USD").Passed)
}

func TestTotalExposureLimit(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		MaxSymbolExposurePct: 0.60,
		MaxTotalExposurePct:  1.0,
	})

	calc.RecordExposure("BTC-USD", 0.50)
	calc.RecordExposure("ETH-USD", 0.50)

	result := checkSignal(t, calc, "SOL-USD")
	assert.False(t, result.Passed)
	assert.Equal(t, []string{"total_exposure_limit"}, violationCodes(result))
	assert.Equal(t, 0.9, result.RiskLevel)
}

func TestRiskLevelIsWorstViolation(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		MaxSymbolExposurePct: 0.25,
		MaxTotalExposurePct:  0.5,
		BlockedSymbols:       []string{"BTC-USD"},
	})
	calc.RecordExposure("BTC-USD", 0.60)

	result := checkSignal(t, calc, "BTC-USD")
	assert.False(t, result.Passed)
	assert.Len(t, result.Violations, 3)
	assert.Equal(t, 1.0, result.RiskLevel)
}

func TestRecordExposureUnwindsAndFloors(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{
		MaxSymbolExposurePct: 0.25,
	})

	calc.RecordExposure("BTC-USD", 0.30)
	assert.False(t, checkSignal(t, calc, "BTC-USD").Passed)

	calc.RecordExposure("BTC-USD", -0.10)
	assert.True(t, checkSignal(t, calc, "BTC-USD").Passed)

	// Unwinding past zero floors at zero rather than going short.
	calc.RecordExposure("BTC-USD", -5.0)
	calc.RecordExposure("BTC-USD", 0.20)
	assert.True(t, checkSignal(t, calc, "BTC-USD").Passed)
}

func TestZeroLimitsDisableChecks(t *testing.T) {
	calc := NewThresholdCalculator(ThresholdConfig{})
	calc.RecordExposure("BTC-USD", 10.0)
	assert.True(t, checkSignal(t, calc, "BTC-USD").Passed)
}
