package drawdown

import (
	"math"
	"time"

	"TradeGate/internal/domain/models"
)

// recoveryProgress maps the recovery state onto [0,1] according to the
// configured ramp mode. Equity-based for linear, elapsed-time-based for
// the exponential and sigmoid ramps.
func recoveryProgress(cfg models.DrawdownConfig, rs models.RecoveryState, equity float64, now time.Time) float64 {
	switch cfg.RecoveryRamp {
	case models.RampExponential:
		t := elapsedFraction(rs, cfg, now)
		return clamp01(1 - math.Exp(-5*t))
	case models.RampSigmoid:
		t := elapsedFraction(rs, cfg, now)
		return clamp01(1 / (1 + math.Exp(-10*(t-0.5))))
	default:
		span := rs.ReferencePeak - rs.LowPoint
		if span <= 0 {
			// Peak equal to the low point means any non-negative
			// improvement is a full recovery.
			return 1
		}
		return clamp01((equity - rs.LowPoint) / span)
	}
}

func elapsedFraction(rs models.RecoveryState, cfg models.DrawdownConfig, now time.Time) float64 {
	if cfg.MaxRecoveryPeriod <= 0 {
		return 1
	}
	return now.Sub(rs.StartedAt).Seconds() / cfg.MaxRecoveryPeriod.Seconds()
}

// rampModifier interpolates between the critical modifier and full
// exposure by the recovery progress.
func rampModifier(cfg models.DrawdownConfig, rs models.RecoveryState, equity float64, now time.Time) float64 {
	progress := recoveryProgress(cfg, rs, equity, now)
	return cfg.CriticalModifier + (1-cfg.CriticalModifier)*progress
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
