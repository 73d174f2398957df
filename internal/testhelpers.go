package internal

import (
	"fmt"
	"time"
)

// CreateTestReferences creates one reference per URL, titled by position
func CreateTestReferences(urls ...string) []Reference {
	refs := make([]Reference, 0, len(urls))
	for i, u := range urls {
		refs = append(refs, Reference{
			ID:    i + 1,
			Title: fmt.Sprintf("Source %d", i+1),
			URL:   u,
		})
	}
	return refs
}

// CreateTestMessages creates an alternating user/assistant exchange of n turns
func CreateTestMessages(n int) []ConversationMessage {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	messages := make([]ConversationMessage, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		content := fmt.Sprintf("Question %d", i/2+1)
		var metadata *MessageMetadata
		if i%2 == 1 {
			role = RoleAssistant
			content = fmt.Sprintf("**Answer %d**\n- detail", i/2+1)
			metadata = &MessageMetadata{
				Sources:            CreateTestReferences(fmt.Sprintf("https://example.com/%d", i)),
				SearchResultsCount: 1,
			}
		}
		messages = append(messages, NewMessage(role, content, base.Add(time.Duration(i)*time.Minute), metadata))
	}
	return messages
}

// CreateTestTranscript creates a transcript with sample data
func CreateTestTranscript(id string) *Transcript {
	return &Transcript{
		Session: Session{
			ID:        id,
			CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Metadata:  map[string]any{"source": "test"},
		},
		Messages: CreateTestMessages(4),
		SavedAt:  time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
	}
}
