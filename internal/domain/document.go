package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Topic values stored alongside news and strategy documents.
const (
	TopicWorldNews       = "World News"
	TopicTradingStrategy = "Trading Strategy"
)

var documentNamespace = uuid.MustParse("5d1c6a53-93a4-4e0b-9a57-3f4f0c2b7e11")

// Metadata tags a document for exact-match filtering.
type Metadata struct {
	Commodity string `json:"commodity,omitempty"`
	Month     string `json:"month,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// Document is a unit of retrievable text. It is not modified after it is stored.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// NewDocument builds a document whose ID is derived from its content and metadata,
// so writing the same document twice replaces it instead of duplicating it.
func NewDocument(content string, md Metadata) Document {
	key := strings.Join([]string{md.Commodity, md.Month, md.Topic, content}, "\x00")
	return Document{
		ID:       uuid.NewSHA1(documentNamespace, []byte(key)).String(),
		Content:  content,
		Metadata: md,
	}
}

// SearchResult represents a matching document with a relevance score.
type SearchResult struct {
	Document Document
	Score    float64
}
