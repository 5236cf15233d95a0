package service

import (
	"fmt"
	"strings"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// resultBlockFormat is the layout of one retrieved professor in the augmented user message.
// The indentation is part of the prompt the system prompt was written against.
const resultBlockFormat = "\n      Returned Results:\n" +
	"      Professor: %s\n" +
	"      Review: %s\n" +
	"      Subject: %s\n" +
	"      Stars: %s\n" +
	"      Sentiment: %s\n" +
	"      \n\n"

// RenderMatches renders each match as a result block, in store order.
func RenderMatches(matches []models.QueryMatch) string {
	var sb strings.Builder

	for _, m := range matches {
		fmt.Fprintf(&sb, resultBlockFormat,
			m.ID, m.Metadata.Review, m.Metadata.Subject, m.Metadata.Stars, m.Metadata.Sentiment)
	}

	return sb.String()
}

// BuildMessages assembles the completion request: the system prompt, every message but the last
// unchanged, then the last message's content with the result blocks appended, as a user turn.
// history must not be empty.
func BuildMessages(systemPrompt string, history []models.Message, resultBlocks string) []models.Message {
	last := history[len(history)-1]

	messages := make([]models.Message, 0, len(history)+1)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	messages = append(messages, history[:len(history)-1]...)
	messages = append(messages, models.Message{Role: models.RoleUser, Content: last.Content + resultBlocks})

	return messages
}
