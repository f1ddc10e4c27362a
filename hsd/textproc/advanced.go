package textproc

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

type substitution struct {
	from string
	to   string
}

// Applied in order; longer contractions come first so "don't" is expanded
// before the generic "n't" suffix rule can split it.
var contractions = []substitution{
	{"don't", "do not"},
	{"won't", "will not"},
	{"can't", "cannot"},
	{"n't", " not"},
	{"'re", " are"},
	{"'s", " is"},
	{"'d", " would"},
	{"'ll", " will"},
	{"'ve", " have"},
	{"'m", " am"},
}

var slang = []substitution{
	{"lol", "laugh out loud"},
	{"omg", "oh my god"},
	{"wtf", "what the fuck"},
	{"fyi", "for your information"},
	{"btw", "by the way"},
	{"imo", "in my opinion"},
	{"tbh", "to be honest"},
}

// AdvancedTextPreprocessor extends the base pipeline with contraction
// expansion and slang normalization, applied after the base steps.
type AdvancedTextPreprocessor struct {
	*TextPreprocessor
	slangRe map[string]*regexp.Regexp
}

// NewAdvancedTextPreprocessor wraps a base preprocessor with the fixed
// substitution tables.
func NewAdvancedTextPreprocessor(opts Options, res *Resources, log zerolog.Logger) *AdvancedTextPreprocessor {
	slangRe := make(map[string]*regexp.Regexp, len(slang))
	for _, s := range slang {
		slangRe[s.from] = regexp.MustCompile(`(?i)\b` + s.from + `\b`)
	}
	return &AdvancedTextPreprocessor{
		TextPreprocessor: NewTextPreprocessor(opts, res, log),
		slangRe:          slangRe,
	}
}

// ExpandContractions rewrites common English contractions to their long
// forms.
func (p *AdvancedTextPreprocessor) ExpandContractions(text string) string {
	for _, c := range contractions {
		text = strings.ReplaceAll(text, c.from, c.to)
	}
	return text
}

// ReplaceSlang rewrites informal abbreviations to their full phrases.
func (p *AdvancedTextPreprocessor) ReplaceSlang(text string) string {
	for _, s := range slang {
		text = p.slangRe[s.from].ReplaceAllString(text, s.to)
	}
	return text
}

// Preprocess runs the base pipeline and then the substitution tables.
func (p *AdvancedTextPreprocessor) Preprocess(text string) string {
	text = p.TextPreprocessor.Preprocess(text)
	text = p.ExpandContractions(text)
	return p.ReplaceSlang(text)
}

// PreprocessBatch maps the advanced Preprocess over texts, preserving order.
func (p *AdvancedTextPreprocessor) PreprocessBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = p.Preprocess(t)
	}
	return out
}
