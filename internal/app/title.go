package app

import (
	"context"
	"fmt"
	"strings"

	"lawassist/internal/rag"
)

const (
	defaultConversationTitle = "New Conversation"
	titleMaxWords            = 5
	titleMinLength           = 5
)

var refusalPrefixes = []string{
	"sorry",
	"i'm sorry",
	"i am sorry",
	"i cannot",
	"i can't",
	"i am unable",
	"as an ai",
}

// deriveTitle produces the conversation title after the first user turn. A
// document-grounded question is titled after the file; otherwise the model
// is asked for a short title, with the first words of the query as fallback.
func (s *ChatService) deriveTitle(ctx context.Context, query string, uploads map[string]string) string {
	if filename, ok := rag.MentionedUpload(query, uploads); ok {
		return fmt.Sprintf("%s_query", filename)
	}

	raw, err := s.generator.Generate(ctx, titlePrompt(query))
	if err != nil {
		return fallbackTitle(query)
	}
	title := sanitizeTitle(raw)
	if rejectTitle(title) {
		return fallbackTitle(query)
	}
	return title
}

func titlePrompt(query string) string {
	return fmt.Sprintf(
		"Generate a title of at most 5 words for a legal consultation that "+
			"starts with this question: %s. Answer only with the title, no "+
			"quotes and no headings.",
		query,
	)
}

func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	if idx := strings.IndexAny(title, "\r\n"); idx >= 0 {
		title = title[:idx]
	}
	words := strings.Fields(title)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	return strings.Join(words, " ")
}

func rejectTitle(title string) bool {
	if title == "" || len(title) < titleMinLength {
		return true
	}
	lowered := strings.ToLower(title)
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// fallbackTitle is the first three words of the query.
func fallbackTitle(query string) string {
	words := strings.Fields(strings.TrimSpace(query))
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return defaultConversationTitle
	}
	return strings.Join(words, " ")
}
