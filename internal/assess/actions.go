package assess

import (
	"github.com/ashita-ai/mamori/internal/lexicon"
	"github.com/ashita-ai/mamori/internal/model"
)

// actionTable maps a computed severity to the recommended response playbook.
// Entries are ordered most urgent first within each tier.
var actionTable = map[model.Severity][]string{
	model.SeverityImmediate: {
		"connect to emergency services",
		"display crisis hotline",
		"activate emergency-contact protocol",
		"open crisis-counselor channel",
		"restrict dangerous content",
	},
	model.SeverityCritical: {
		"switch to crisis interface",
		"offer crisis-counselor connection",
		"display safety plan",
		"alert emergency contacts",
		"offer grounding exercises",
	},
	model.SeverityHigh: {
		"prompt crisis chat",
		"surface coping strategies",
		"suggest reaching a trusted contact",
		"offer breathing exercise",
		"schedule urgent check-in",
	},
	model.SeverityModerate: {
		"offer peer support",
		"suggest self-care activities",
		"surface mood tools",
		"prompt safety-plan review",
		"offer therapist scheduling",
	},
	model.SeverityLow: {
		"monitor for escalation",
		"surface wellness resources",
		"offer journaling prompt",
		"suggest relaxation techniques",
	},
	model.SeverityNone: {
		"routine monitoring",
	},
}

// suggestedActions builds the action list for an assessment. A concrete
// plan/means mention overrides everything else: the means-restriction
// actions go first regardless of computed severity.
func suggestedActions(severity model.Severity, indicators []model.Indicator, factors []model.RiskFactor) []string {
	base := actionTable[severity]
	out := make([]string, 0, len(base)+4)

	if mentionsPlanOrMeans(indicators) {
		out = append(out,
			"URGENT: remove access to means",
			"immediate safety assessment required",
		)
	}
	out = append(out, base...)

	if hasProtectiveFactor(factors) && severity <= model.SeverityModerate {
		out = append(out,
			"activate existing safety plan",
			"connect with support network",
		)
	}
	return out
}

func mentionsPlanOrMeans(indicators []model.Indicator) bool {
	for _, in := range indicators {
		if in.Kind == model.IndicatorPattern && in.Detail == lexicon.FamilyPlanMentions {
			return true
		}
	}
	return false
}

func hasProtectiveFactor(factors []model.RiskFactor) bool {
	for _, f := range factors {
		if f.Kind == model.FactorProtective {
			return true
		}
	}
	return false
}
