package recommend

import (
	"github.com/triage-ai/palisade/services/tool_router/internal/analysis"
	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// relevanceRule reports whether a category fits an (intent, domain) pair.
type relevanceRule func(analysis.Intent, analysis.Domain) bool

func intentIn(intents ...analysis.Intent) func(analysis.Intent) bool {
	return func(i analysis.Intent) bool {
		for _, x := range intents {
			if i == x {
				return true
			}
		}
		return false
	}
}

var (
	codeIntents       = intentIn(analysis.IntentAnalysis, analysis.IntentProblemSolving, analysis.IntentOptimization, analysis.IntentCreation)
	analysisIntents   = intentIn(analysis.IntentAnalysis, analysis.IntentOptimization)
	fileIntents       = intentIn(analysis.IntentAnalysis, analysis.IntentAssistance)
	automationIntents = intentIn(analysis.IntentOptimization, analysis.IntentProblemSolving)
	textIntents       = intentIn(analysis.IntentAssistance, analysis.IntentCreation)
)

// specificRules is the compatibility table for every category except
// text-processing, which is the fallback.
var specificRules = map[tool.Category]relevanceRule{
	tool.CategoryCodeProcessing: func(i analysis.Intent, d analysis.Domain) bool {
		return d == analysis.DomainProgramming && codeIntents(i)
	},
	tool.CategoryResearch: func(i analysis.Intent, d analysis.Domain) bool {
		return i == analysis.IntentInformation ||
			(d == analysis.DomainResearch && i == analysis.IntentAnalysis)
	},
	tool.CategoryCreative: func(i analysis.Intent, d analysis.Domain) bool {
		return i == analysis.IntentCreation && (d == analysis.DomainCreative || d == analysis.DomainGeneral)
	},
	tool.CategoryAnalysis: func(i analysis.Intent, _ analysis.Domain) bool {
		return analysisIntents(i)
	},
	tool.CategoryFileProcessing: func(i analysis.Intent, _ analysis.Domain) bool {
		return fileIntents(i)
	},
	tool.CategoryAutomation: func(i analysis.Intent, d analysis.Domain) bool {
		return automationIntents(i) && d != analysis.DomainCreative
	},
}

// Relevant reports whether tools of category c should be considered for
// the given intent and domain. Text-processing tools are relevant for
// general assistance and creation, and for any pair no other category
// claims.
func Relevant(c tool.Category, intent analysis.Intent, domain analysis.Domain) bool {
	if c == tool.CategoryTextProcessing {
		if domain == analysis.DomainGeneral && textIntents(intent) {
			return true
		}
		for _, rule := range specificRules {
			if rule(intent, domain) {
				return false
			}
		}
		return true
	}
	rule, ok := specificRules[c]
	return ok && rule(intent, domain)
}
