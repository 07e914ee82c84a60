// Package language decides whether an article belongs in the corpus.
//
// Two gates run at different pipeline stages: a cheap title check before
// any download, and a content check on the extracted text. Both fail
// open, since dropping an article silently is worse than keeping a
// doubtful one.
package language

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"CorpusHarvester/internal/ports"
	"CorpusHarvester/internal/translit"
)

// Stop words whose presence marks a title as English or Turkish front
// matter rather than an article in the target languages.
var titleStopWords = []string{
	"introduction", "abstract", "summary", "review", "analysis", "studies", "research",
	"özet", "giriş", "sonuç", "analiz", "araştırma", "çalışma",
}

// Short function words common to Bosnian, Croatian and Serbian, used to
// tell them apart from their closest Slavic relatives.
var kinIndicators = []string{
	"je", "u", "i", "na", "da", "se", "za", "od",
	"koji", "koja", "što", "čak", "već", "ali", "kao",
}

const (
	targetConfidence  = 0.7
	relatedConfidence = 0.8
	minContentRunes   = 50
	confidenceWindow  = 1000
	indicatorWindow   = 500
	minIndicators     = 5
)

type Classifier struct {
	detector ports.LanguageDetector
	logger   *slog.Logger
}

func NewClassifier(detector ports.LanguageDetector, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{detector: detector, logger: logger}
}

// ShouldProcessTitle reports whether an article is worth acquiring based
// on its title alone. An empty or undetectable title is accepted; the
// stop-word check only applies when detection succeeded.
func (c *Classifier) ShouldProcessTitle(title string) bool {
	if title == "" {
		return true
	}

	code, ok := c.detector.Detect(title)
	if !ok {
		c.logger.Warn("title language undetectable, keeping article", "title", title)
		return true
	}
	if code == "en" || code == "tr" {
		c.logger.Info("title rejected by language", "language", code, "title", title)
		return false
	}

	lower := strings.ToLower(title)
	for _, word := range titleStopWords {
		if strings.Contains(lower, word) {
			c.logger.Info("title rejected by stop word", "word", word, "title", title)
			return false
		}
	}
	return true
}

// IsTargetLanguage reports whether extracted text reads as Bosnian,
// Croatian or Serbian. Texts too short for reliable detection pass
// through unjudged.
func (c *Classifier) IsTargetLanguage(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= minContentRunes {
		return true
	}

	scores := c.detector.Confidences(runePrefix(text, confidenceWindow))
	if len(scores) == 0 {
		c.logger.Warn("content language undetectable, keeping article")
		return true
	}

	for _, score := range scores {
		if isTarget(score.Code) && score.Confidence > targetConfidence {
			return true
		}
	}

	// A confident Slovene or Macedonian reading is often a misread of
	// the target languages; the function words settle it.
	for _, score := range scores {
		if isRelated(score.Code) && score.Confidence > relatedConfidence {
			if c.indicatorCount(text) > minIndicators {
				c.logger.Info("accepted as target language by indicator words", "detected", score.Code)
				return true
			}
			break
		}
	}

	if translit.ContainsCyrillic(text) {
		c.logger.Info("accepted by Cyrillic script presence")
		return true
	}

	return false
}

func (c *Classifier) indicatorCount(text string) int {
	lower := strings.ToLower(runePrefix(text, indicatorWindow))
	count := 0
	for _, word := range kinIndicators {
		if strings.Contains(lower, word) {
			count++
		}
	}
	return count
}

func isTarget(code string) bool {
	return code == "bs" || code == "hr" || code == "sr"
}

func isRelated(code string) bool {
	return code == "sl" || code == "mk"
}

// runePrefix cuts s after n runes without walking the whole string.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
