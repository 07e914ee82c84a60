package textclean

import (
	"regexp"
	"strings"

	"CorpusHarvester/internal/translit"
)

const recordSentinel = "<***>"

// Cleaning rounds are repeated until the text stops changing, so one more
// round can never alter the output. Realistic inputs settle after two.
const maxCleanRounds = 6

var (
	horizontalRule     = regexp.MustCompile(`_{10,}`)
	pageNumberLine     = regexp.MustCompile(`(?m)^\s*\d+\s*$`)
	udkLine            = regexp.MustCompile(`(?m)^.*UDK.*$`)
	doiLine            = regexp.MustCompile(`(?m)^.*DOI:.*$`)
	keywordLine        = regexp.MustCompile(`(?m)Ključne riječi:.*$`)
	numberedHeading    = regexp.MustCompile(`(?m)^\s*\d+(\.\d+)*\s+.*$`)
	romanHeading       = regexp.MustCompile(`(?m)^\s*[IVX]+\.\s+.*$`)
	bareSectionWord    = regexp.MustCompile(`(?m)^\s*(UVOD|ZAKLJUČAK)\s*$`)
	bracketCitation    = regexp.MustCompile(`\[\d+\]`)
	authorYearCitation = regexp.MustCompile(`\([A-Za-z]+\s*,?\s*\d{4}(:\s*\d+)?\)`)
	etAlCitation       = regexp.MustCompile(`\([A-Za-z]+ et al\.,\s*\d{4}\)`)
	authorPairCitation = regexp.MustCompile(`\([A-Za-z]+ & [A-Za-z]+,\s*\d{4}\)`)
	nonASCII           = regexp.MustCompile(`[^\x00-\x7F]`)

	apparatusHeadings = []*regexp.Regexp{
		regexp.MustCompile(`Literatura\s*\n`),
		regexp.MustCompile(`References\s*\n`),
		regexp.MustCompile(`Bibliography\s*\n`),
	}
	foreignHeadings = []*regexp.Regexp{
		regexp.MustCompile(`Summary\s*\n`),
		regexp.MustCompile(`Abstract\s*\n`),
	}
)

// Normalizer turns raw extracted article text into clean corpus body text.
type Normalizer struct {
	translitEnabled bool
}

func New(translitEnabled bool) *Normalizer {
	return &Normalizer{translitEnabled: translitEnabled}
}

// Normalize transliterates Cyrillic input to Latin, then strips scholarly
// apparatus and reflows paragraphs. Idempotent: normalizing an already
// normalized text returns it unchanged.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	if n.translitEnabled && translit.ContainsCyrillic(text) {
		text = translit.ToLatin(text)
	}

	for i := 0; i < maxCleanRounds; i++ {
		next := cleanOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func cleanOnce(text string) string {
	if text == "" {
		return ""
	}

	// Headers, footers, page numbers.
	text = horizontalRule.ReplaceAllString(text, "")
	text = pageNumberLine.ReplaceAllString(text, "")
	text = udkLine.ReplaceAllString(text, "")
	text = doiLine.ReplaceAllString(text, "")
	text = keywordLine.ReplaceAllString(text, "")

	// Trailing literature sections.
	for _, heading := range apparatusHeadings {
		text = stripTrailingSection(text, heading)
	}

	// Headings and subheadings.
	text = numberedHeading.ReplaceAllString(text, "")
	text = romanHeading.ReplaceAllString(text, "")
	text = bareSectionWord.ReplaceAllString(text, "")

	// Inline citation apparatus.
	text = bracketCitation.ReplaceAllString(text, "")
	text = authorYearCitation.ReplaceAllString(text, "")
	text = etAlCitation.ReplaceAllString(text, "")
	text = authorPairCitation.ReplaceAllString(text, "")

	// Foreign-language abstract sections.
	for _, heading := range foreignHeadings {
		text = stripTrailingSection(text, heading)
	}

	text = nonASCII.ReplaceAllString(text, " ")

	return reflowParagraphs(text)
}

// stripTrailingSection removes everything from each heading match up to
// the next record sentinel or the end of input. RE2 has no lookahead, so
// the cut point is found with a substring scan instead; a final newline
// survives the cut.
func stripTrailingSection(text string, heading *regexp.Regexp) string {
	for {
		loc := heading.FindStringIndex(text)
		if loc == nil {
			return text
		}

		end := len(text)
		if idx := strings.Index(text[loc[1]:], recordSentinel); idx >= 0 {
			end = loc[1] + idx
		} else if strings.HasSuffix(text, "\n") {
			end = len(text) - 1
		}
		if end < loc[1] {
			end = loc[1]
		}

		text = text[:loc[0]] + text[end:]
	}
}

// reflowParagraphs joins line breaks inside each blank-line-delimited
// paragraph into single spaces.
func reflowParagraphs(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	for i, paragraph := range paragraphs {
		paragraphs[i] = strings.Join(strings.Split(paragraph, "\n"), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}
