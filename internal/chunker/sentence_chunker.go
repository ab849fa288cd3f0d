package chunker

import (
	"regexp"
	"strings"

	"commodity-rag/internal/domain"
)

// SentenceChunker splits a long section into overlapping runs of sentences.
// The first line of the section (its heading) is repeated at the top of every
// chunk so each chunk still says what it is about.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewSentenceChunker returns a chunker; sentencesPerChunk <= 0 disables
// splitting.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if sentencesPerChunk > 0 && overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk returns doc unchanged when it fits in one chunk, otherwise one
// document per chunk with the same metadata.
func (c *SentenceChunker) Chunk(doc domain.Document) []domain.Document {
	if c.sentencesPerChunk <= 0 {
		return []domain.Document{doc}
	}
	heading, body, found := strings.Cut(doc.Content, "\n")
	if !found {
		heading, body = "", doc.Content
	}
	var sentences []string
	consumed := 0
	for _, loc := range c.splitter.FindAllStringIndex(body, -1) {
		if s := strings.TrimSpace(body[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		consumed = loc[1]
	}
	if tail := strings.TrimSpace(body[consumed:]); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) <= c.sentencesPerChunk {
		return []domain.Document{doc}
	}

	var out []domain.Document
	for i := 0; i < len(sentences); {
		end := min(i+c.sentencesPerChunk, len(sentences))
		text := strings.Join(sentences[i:end], " ")
		if heading != "" {
			text = heading + "\n" + text
		}
		out = append(out, domain.NewDocument(text, doc.Metadata))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return out
}

// ChunkAll applies Chunk to every document, preserving order.
func (c *SentenceChunker) ChunkAll(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, c.Chunk(d)...)
	}
	return out
}
