package assess

import "github.com/ashita-ai/mamori/internal/model"

// crisisIndicatorFloor is the indicator count at which even low-severity
// signals flip the in-crisis flag.
const crisisIndicatorFloor = 3

type aggregateResult struct {
	severity          model.Severity
	confidence        float64
	isInCrisis        bool
	requiresImmediate bool
}

// aggregate folds indicators and risk factors into one calibrated decision.
// Pure and deterministic for a given indicator and factor order.
func aggregate(indicators []model.Indicator, factors []model.RiskFactor) aggregateResult {
	var res aggregateResult

	sumSeverity := 0.0
	weighted := 0.0
	for _, in := range indicators {
		if in.Severity > res.severity {
			res.severity = in.Severity
		}
		sumSeverity += float64(in.Severity)
		weighted += in.Confidence * float64(in.Severity)
	}
	if sumSeverity > 0 {
		res.confidence = weighted / sumSeverity
	}

	for _, f := range factors {
		switch f.Kind {
		case model.FactorWarning, model.FactorHistorical:
			res.confidence = min(1.0, res.confidence+f.Weight*0.1)
			if f.Weight > 0.7 && res.severity < model.SeverityHigh {
				res.severity = model.SeverityHigh
			}
		case model.FactorProtective:
			res.confidence = max(0.0, res.confidence-abs(f.Weight)*0.1)
		}
	}

	res.isInCrisis = res.severity >= model.SeverityModerate ||
		(res.severity >= model.SeverityLow && len(indicators) >= crisisIndicatorFloor)
	res.requiresImmediate = res.severity.RequiresImmediate()
	return res
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
