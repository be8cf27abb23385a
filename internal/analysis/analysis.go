// Package analysis classifies free-form input into complexity, domain,
// urgency, resource needs and a coarse intent. Every function here is pure.
package analysis

import (
	"strings"
	"unicode"

	"github.com/triage-ai/palisade/services/tool_router/internal/tool"
)

// Input length thresholds, in characters.
const (
	mediumComplexityLength = 200
	highComplexityLength   = 1000
	computeIntensiveLength = 500
	memoryIntensiveLength  = 1000
)

// Domain is the subject area of the input.
type Domain string

const (
	DomainProgramming Domain = "programming"
	DomainResearch    Domain = "research"
	DomainCreative    Domain = "creative"
	DomainGeneral     Domain = "general"
)

// Urgency is how soon the user expects an answer.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
)

func (u Urgency) String() string {
	switch u {
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "low"
	}
}

// MarshalText encodes the urgency by name.
func (u Urgency) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// Resources lists what executing a request is likely to need.
type Resources struct {
	ComputeIntensive bool `json:"compute_intensive"`
	NetworkAccess    bool `json:"network_access"`
	FileAccess       bool `json:"file_access"`
	MemoryIntensive  bool `json:"memory_intensive"`
}

// ContextAnalysis is the classifier output for one request.
type ContextAnalysis struct {
	Complexity tool.Complexity `json:"complexity"`
	Domain     Domain          `json:"domain"`
	Urgency    Urgency         `json:"urgency"`
	Resources  Resources       `json:"resources"`
}

type keywordRule[T any] struct {
	label    T
	keywords []string
}

var domainRules = []keywordRule[Domain]{
	{DomainProgramming, []string{
		"code", "function", "debug", "bug", "compile", "program", "script", "api", "algorithm",
		"refactor", "syntax", "variable", "class", "method", "python", "javascript", "golang",
		"java", "swift", "rust", "sql", "repository", "stack trace", "unit test",
	}},
	{DomainResearch, []string{
		"research", "study", "paper", "source", "citation", "literature", "evidence",
		"investigate", "survey", "journal", "article", "findings",
	}},
	{DomainCreative, []string{
		"story", "poem", "creative", "design", "novel", "character", "imagine", "brainstorm",
		"lyric", "fiction", "write",
	}},
}

var urgencyRules = []keywordRule[Urgency]{
	{UrgencyHigh, []string{"urgent", "asap", "quickly"}},
	{UrgencyMedium, []string{"soon", "priority"}},
}

var (
	networkKeywords = []string{"search", "web", "online", "internet", "url"}
	fileKeywords    = []string{"file", "document", "pdf", "attachment"}
)

// AnalyzeContext classifies the input carried by tc.
func AnalyzeContext(tc *tool.ToolContext) ContextAnalysis {
	if tc == nil {
		return Analyze("")
	}
	return Analyze(tc.Input)
}

// Analyze classifies a raw input string.
func Analyze(input string) ContextAnalysis {
	text := newText(input)
	n := len([]rune(input))

	a := ContextAnalysis{
		Complexity: tool.ComplexityLow,
		Domain:     DomainGeneral,
		Urgency:    UrgencyLow,
	}
	switch {
	case n > highComplexityLength:
		a.Complexity = tool.ComplexityHigh
	case n > mediumComplexityLength:
		a.Complexity = tool.ComplexityMedium
	}
	if d, ok := firstMatch(text, domainRules); ok {
		a.Domain = d
	}
	if u, ok := firstMatch(text, urgencyRules); ok {
		a.Urgency = u
	}
	a.Resources = Resources{
		ComputeIntensive: n > computeIntensiveLength,
		NetworkAccess:    text.mentionsAny(networkKeywords),
		FileAccess:       text.mentionsAny(fileKeywords),
		MemoryIntensive:  n > memoryIntensiveLength,
	}
	return a
}

func firstMatch[T any](text normalizedText, rules []keywordRule[T]) (T, bool) {
	for _, r := range rules {
		if text.mentionsAny(r.keywords) {
			return r.label, true
		}
	}
	var zero T
	return zero, false
}

// normalizedText is lower-cased input split into word tokens.
type normalizedText struct {
	joined string
	tokens []string
}

func newText(input string) normalizedText {
	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return normalizedText{joined: " " + strings.Join(tokens, " ") + " ", tokens: tokens}
}

// mentions matches a single keyword as a word prefix ("debug" matches
// "debugging" but "fun" does not match inside "refund"), and a multi-word
// phrase as a run of whole words.
func (t normalizedText) mentions(keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(t.joined, " "+keyword+" ")
	}
	for _, tok := range t.tokens {
		if strings.HasPrefix(tok, keyword) {
			return true
		}
	}
	return false
}

func (t normalizedText) mentionsAny(keywords []string) bool {
	for _, k := range keywords {
		if t.mentions(k) {
			return true
		}
	}
	return false
}
