package ingest

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"commodity-rag/internal/domain"
	"commodity-rag/internal/lexicon"
)

var newsMonthRe = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December) 20\d{2}`)

// NewsSplitter segments a news digest into one document per "<Month> <Year>"
// heading.
type NewsSplitter struct {
	lex *lexicon.Lexicon
	// Strict drops sections whose month the lexicon cannot map instead of
	// storing the raw heading as the month.
	Strict bool
	log    *slog.Logger
}

func NewNewsSplitter(lex *lexicon.Lexicon, strict bool, log *slog.Logger) *NewsSplitter {
	if lex == nil {
		lex = lexicon.Default()
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NewsSplitter{lex: lex, Strict: strict, log: log}
}

// Split returns the sections in text order. A section runs from the end of its
// heading to the start of the next one.
func (s *NewsSplitter) Split(text string) []domain.Document {
	matches := newsMonthRe.FindAllStringIndex(text, -1)
	docs := make([]domain.Document, 0, len(matches))
	for i, loc := range matches {
		heading := text[loc[0]:loc[1]]
		stop := len(text)
		if i+1 < len(matches) {
			stop = matches[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:stop])

		name, year, _ := strings.Cut(heading, " ")
		month, ok := s.lex.Lookup(name, year)
		if !ok {
			if s.Strict {
				s.log.Warn("skipping section with unmapped month", "month", heading)
				continue
			}
			s.log.Warn("could not map month, keeping raw heading", "month", heading)
			month = heading
		}
		docs = append(docs, domain.NewDocument(heading+"\n"+body, domain.Metadata{
			Month: month,
			Topic: domain.TopicWorldNews,
		}))
	}
	return docs
}
