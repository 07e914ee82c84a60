// Package detect adapts the lingua statistical language detector.
package detect

import (
	"strings"

	"github.com/pemistahl/lingua-go"

	"CorpusHarvester/internal/domain"
	"CorpusHarvester/internal/ports"
)

// Lingua restricts detection to the candidate set the harvester actually
// has to tell apart: the three target languages, their closest Slavic
// relatives, and the two excluded languages.
type Lingua struct {
	detector lingua.LanguageDetector
}

var _ ports.LanguageDetector = (*Lingua)(nil)

func NewLingua() *Lingua {
	languages := []lingua.Language{
		lingua.Bosnian, lingua.Croatian, lingua.Serbian,
		lingua.Slovene, lingua.Macedonian,
		lingua.English, lingua.Turkish,
	}
	return &Lingua{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// Detect returns the single best guess as a lowercase ISO 639-1 code.
func (l *Lingua) Detect(text string) (string, bool) {
	language, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return isoCode(language), true
}

// Confidences ranks the candidate set over the given text, best first.
func (l *Lingua) Confidences(text string) []domain.LanguageScore {
	values := l.detector.ComputeLanguageConfidenceValues(text)
	scores := make([]domain.LanguageScore, 0, len(values))
	for _, value := range values {
		scores = append(scores, domain.LanguageScore{
			Code:       isoCode(value.Language()),
			Confidence: value.Value(),
		})
	}
	return scores
}

func isoCode(language lingua.Language) string {
	return strings.ToLower(language.IsoCode639_1().String())
}
