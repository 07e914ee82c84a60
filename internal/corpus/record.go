package corpus

import (
	"strings"

	"CorpusHarvester/internal/domain"
)

// Sentinel opens every record. Splitting the corpus on it is lossless.
const Sentinel = "<***>"

const (
	placeholder  = "N/A"
	defaultTitle = "Unknown Title"
)

// Metadata holds the record header fields in their output order.
type Metadata struct {
	Journal  string
	Date     string
	Section  string
	Kicker   string
	Title    string
	Subtitle string
	Pages    string
	Authors  string
}

// NewMetadata derives header fields from an article reference. The kicker
// and subtitle slots have no counterpart on the journal platform and stay
// at the placeholder.
func NewMetadata(journal string, ref domain.ArticleReference) Metadata {
	m := Metadata{
		Journal:  journal,
		Date:     ref.Year,
		Section:  ref.Section,
		Kicker:   placeholder,
		Title:    ref.Title,
		Subtitle: placeholder,
		Pages:    ref.Pages,
		Authors:  ref.Authors,
	}
	if m.Section == "" {
		m.Section = placeholder
	}
	if m.Title == "" {
		m.Title = defaultTitle
	}
	return m
}

// Format renders one corpus record. The body starts directly on the line
// after the header block; an empty body still yields the full header.
func Format(meta Metadata, body string) string {
	var b strings.Builder
	b.WriteString(Sentinel + "\n")
	b.WriteString("NOVINA: " + meta.Journal + "\n")
	b.WriteString("DATUM: " + meta.Date + "\n")
	b.WriteString("RUBRIKA: " + meta.Section + "\n")
	b.WriteString("NADNASLOV: " + meta.Kicker + "\n")
	b.WriteString("NASLOV: " + meta.Title + "\n")
	b.WriteString("PODNASLOV: " + meta.Subtitle + "\n")
	b.WriteString("STRANA: " + meta.Pages + "\n")
	b.WriteString("AUTOR(I): " + meta.Authors + "\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	return b.String()
}

// Split recovers individual records from a concatenated corpus. Records
// keep their sentinel line, so rejoining them restores the input.
func Split(text string) []string {
	if text == "" {
		return nil
	}

	parts := strings.Split(text, Sentinel+"\n")
	records := make([]string, 0, len(parts))
	for i, part := range parts {
		// Anything ahead of the first sentinel is not a record.
		if i == 0 {
			continue
		}
		records = append(records, Sentinel+"\n"+part)
	}
	return records
}
