package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Options controls the preprocessing pipeline. The zero value is not useful;
// start from DefaultOptions.
type Options struct {
	RemoveURLs        bool
	RemoveMentions    bool
	RemoveHashtags    bool
	RemoveNumbers     bool
	RemovePunctuation bool
	Lowercase         bool
	RemoveStopwords   bool
	StemWords         bool
	LemmatizeWords    bool
	MinLength         int
	MaxLength         int
}

// DefaultOptions mirrors the pipeline defaults: strip URLs and mentions,
// lowercase, keep hashtags/numbers/punctuation, no token-level rewriting.
func DefaultOptions() Options {
	return Options{
		RemoveURLs:     true,
		RemoveMentions: true,
		Lowercase:      true,
		MinLength:      3,
		MaxLength:      512,
	}
}

var (
	urlRe        = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	mentionRe    = regexp.MustCompile(`@\w+`)
	hashtagRe    = regexp.MustCompile(`#\w+`)
	digitsRe     = regexp.MustCompile(`\d+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// TextPreprocessor applies a deterministic, fixed-order cleaning pipeline to
// raw text. It holds no mutable state, so a single instance may be shared
// across goroutines.
type TextPreprocessor struct {
	opts Options
	res  *Resources
	log  zerolog.Logger
}

// NewTextPreprocessor builds a preprocessor with the given options. res may
// be nil when no token-level step is enabled.
func NewTextPreprocessor(opts Options, res *Resources, log zerolog.Logger) *TextPreprocessor {
	if res == nil && (opts.RemoveStopwords || opts.StemWords || opts.LemmatizeWords) {
		res = NewResources()
	}
	return &TextPreprocessor{opts: opts, res: res, log: log.With().Str("component", "preprocessor").Logger()}
}

// Preprocess cleans a single text. Empty or whitespace-only input yields an
// empty string, as does any text shorter than MinLength after cleaning.
// The order of operations is fixed: URLs, mentions, hashtags, digits, case
// folding, punctuation, token-level steps, whitespace normalization, length
// filtering.
func (p *TextPreprocessor) Preprocess(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if p.opts.RemoveURLs {
		text = urlRe.ReplaceAllString(text, "")
	}
	if p.opts.RemoveMentions {
		text = mentionRe.ReplaceAllString(text, "")
	}
	if p.opts.RemoveHashtags {
		text = hashtagRe.ReplaceAllString(text, "")
	}
	if p.opts.RemoveNumbers {
		text = digitsRe.ReplaceAllString(text, "")
	}
	if p.opts.Lowercase {
		text = strings.ToLower(text)
	}
	if p.opts.RemovePunctuation {
		text = strings.Map(func(r rune) rune {
			if strings.ContainsRune(asciiPunct, r) {
				return -1
			}
			return r
		}, text)
	}

	if p.opts.RemoveStopwords || p.opts.StemWords || p.opts.LemmatizeWords {
		tokens := strings.Fields(text)
		out := tokens[:0]
		for _, tok := range tokens {
			if p.opts.RemoveStopwords && p.res.IsStopword(tok) {
				continue
			}
			if p.opts.StemWords {
				tok = p.res.Stem(tok)
			}
			if p.opts.LemmatizeWords {
				lemma, err := p.res.Lemmatize(tok)
				if err != nil {
					p.log.Warn().Err(err).Msg("lemmatizer unavailable, keeping token")
				} else {
					tok = lemma
				}
			}
			out = append(out, tok)
		}
		text = strings.Join(out, " ")
	}

	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	if utf8.RuneCountInString(text) < p.opts.MinLength {
		return ""
	}
	if max := p.opts.MaxLength; max > 0 && utf8.RuneCountInString(text) > max {
		runes := []rune(text)
		text = string(runes[:max])
	}

	return text
}

// PreprocessBatch maps Preprocess over texts, preserving order.
func (p *TextPreprocessor) PreprocessBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = p.Preprocess(t)
	}
	return out
}

// Stats summarizes the effect of preprocessing over a corpus.
type Stats struct {
	OriginalAvgLength    float64 `json:"original_avg_length"`
	ProcessedAvgLength   float64 `json:"preprocessed_avg_length"`
	OriginalMaxLength    int     `json:"original_max_length"`
	ProcessedMaxLength   int     `json:"preprocessed_max_length"`
	EmptyTextsRemoved    int     `json:"empty_texts_removed"`
	LengthReductionRatio float64 `json:"length_reduction_ratio"`
}

// ComputeStats compares original and processed texts by whitespace-token
// length. processed may be shorter than original when rows were dropped.
func ComputeStats(original, processed []string) Stats {
	var s Stats
	var origSum, procSum int
	for _, t := range original {
		n := len(strings.Fields(t))
		origSum += n
		if n > s.OriginalMaxLength {
			s.OriginalMaxLength = n
		}
	}
	for _, t := range processed {
		n := len(strings.Fields(t))
		procSum += n
		if n > s.ProcessedMaxLength {
			s.ProcessedMaxLength = n
		}
	}
	if len(original) > 0 {
		s.OriginalAvgLength = float64(origSum) / float64(len(original))
	}
	if len(processed) > 0 {
		s.ProcessedAvgLength = float64(procSum) / float64(len(processed))
	}
	s.EmptyTextsRemoved = len(original) - len(processed)
	if origSum > 0 {
		s.LengthReductionRatio = float64(origSum-procSum) / float64(origSum)
	}
	return s
}
