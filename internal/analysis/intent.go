package analysis

import "github.com/triage-ai/palisade/services/tool_router/internal/tool"

// Intent is the coarse goal behind a request.
type Intent string

const (
	IntentAnalysis       Intent = "analysis"
	IntentCreation       Intent = "creation"
	IntentInformation    Intent = "information"
	IntentProblemSolving Intent = "problem-solving"
	IntentOptimization   Intent = "optimization"
	IntentAssistance     Intent = "assistance"
)

// intentRules are checked in order; the first rule with a matching keyword
// decides the intent.
var intentRules = []keywordRule[Intent]{
	{IntentAnalysis, []string{"analyze", "analyse", "analysis", "review", "examine", "evaluate", "compare", "assess", "inspect", "audit"}},
	{IntentCreation, []string{"create", "write", "generate", "build", "draft", "compose", "make"}},
	{IntentInformation, []string{"what", "how", "why", "when", "who", "explain", "find", "search", "research", "tell me", "define", "lookup"}},
	{IntentProblemSolving, []string{"fix", "debug", "solve", "error", "issue", "problem", "troubleshoot", "bug", "broken", "crash", "fail"}},
	{IntentOptimization, []string{"optimize", "optimise", "improve", "faster", "speed up", "refactor", "performance", "efficien", "streamline"}},
}

// PredictIntent classifies the input carried by tc.
func PredictIntent(tc *tool.ToolContext) Intent {
	if tc == nil {
		return IntentAssistance
	}
	return Predict(tc.Input)
}

// Predict classifies a raw input string, defaulting to assistance.
func Predict(input string) Intent {
	if intent, ok := firstMatch(newText(input), intentRules); ok {
		return intent
	}
	return IntentAssistance
}
