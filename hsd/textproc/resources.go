package textproc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/kljensen/snowball"
)

// Resources bundles the linguistic assets the preprocessor may need:
// a stopword set, a stemmer, and a lemmatizer. Construction is cheap; the
// lemmatizer dictionary is loaded lazily exactly once and shared by every
// caller, so triggering it from concurrent loaders is safe.
type Resources struct {
	stopwords map[string]struct{}

	lemmaOnce sync.Once
	lemma     *golem.Lemmatizer
	lemmaErr  error
}

// NewResources returns a Resources backed by the embedded English stopword
// list. The lemmatizer is not loaded until first use.
func NewResources() *Resources {
	return &Resources{stopwords: englishStopwords}
}

// IsStopword reports whether the lowercased token is in the stopword set.
func (r *Resources) IsStopword(token string) bool {
	_, ok := r.stopwords[strings.ToLower(token)]
	return ok
}

// Stem reduces a token to its snowball stem. Tokens the stemmer rejects are
// returned unchanged.
func (r *Resources) Stem(token string) string {
	stemmed, err := snowball.Stem(token, "english", false)
	if err != nil {
		return token
	}
	return stemmed
}

// Lemmatize maps a token to its dictionary lemma, loading the dictionary on
// first call. Unknown tokens are returned unchanged.
func (r *Resources) Lemmatize(token string) (string, error) {
	r.lemmaOnce.Do(func() {
		lemma, err := golem.New(en.New())
		if err != nil {
			r.lemmaErr = fmt.Errorf("load lemmatizer dictionary: %w", err)
			return
		}
		r.lemma = lemma
	})
	if r.lemmaErr != nil {
		return token, r.lemmaErr
	}
	if !r.lemma.InDict(token) {
		return token, nil
	}
	return r.lemma.Lemma(token), nil
}
