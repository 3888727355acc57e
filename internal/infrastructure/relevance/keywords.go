package relevance

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"NewsCollector/internal/config"
	"NewsCollector/internal/domain"
	"NewsCollector/internal/ports"
)

const (
	baseScore    = 0.5
	extraMatch   = 0.1
	weightedTerm = 0.15
)

// KeywordScorer rates items by keyword hits in their text.
// Any exclude hit or no must-include hit scores 0; otherwise the score starts at 0.5,
// grows with every further must-include and weighted keyword, and is capped at 1.
type KeywordScorer struct {
	mustInclude []string
	weighted    []string
	exclude     []string
}

var _ ports.Scorer = (*KeywordScorer)(nil)

func NewKeywordScorer(cfg config.RelevanceConfig) *KeywordScorer {
	return &KeywordScorer{
		mustInclude: foldAll(cfg.MustInclude),
		weighted:    foldAll(cfg.AdditionalWeight),
		exclude:     foldAll(cfg.Exclude),
	}
}

func (k *KeywordScorer) Score(item domain.CollectedItem) float64 {
	text := fold(strings.Join(append([]string{item.Title, item.Summary, item.Content}, item.Tags...), " "))

	if countHits(text, k.exclude) > 0 {
		return 0
	}
	must := countHits(text, k.mustInclude)
	if must == 0 {
		return 0
	}

	score := baseScore + extraMatch*float64(must-1) + weightedTerm*float64(countHits(text, k.weighted))
	return math.Round(math.Min(score, 1)*100) / 100
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if containsKeyword(text, kw) {
			hits++
		}
	}
	return hits
}

// containsKeyword requires word boundaries around keywords that start or end with an ASCII letter or digit,
// so "AI" does not match "said". Other scripts match as plain substrings.
func containsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)
	checkStart, checkEnd := isASCIIWord(first), isASCIIWord(last)

	for offset := 0; offset <= len(text)-len(kw); {
		idx := strings.Index(text[offset:], kw)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(kw)

		okStart := !checkStart || start == 0 || !isWordRune(lastRune(text[:start]))
		okEnd := !checkEnd || end == len(text) || !isWordRune(firstRune(text[end:]))
		if okStart && okEnd {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isASCIIWord(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, fold(w))
		}
	}
	return out
}
