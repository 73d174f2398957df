package export

import (
	"time"

	"github.com/iksnae/chat-session/internal"
)

// document is what the JSON and YAML exporters write: the transcript with a
// few summary fields and every source the conversation cited, deduplicated
// across turns and renumbered.
type document struct {
	Session      internal.Session               `json:"session" yaml:"session"`
	SavedAt      time.Time                      `json:"saved_at" yaml:"saved_at"`
	MessageCount int                            `json:"message_count" yaml:"message_count"`
	Sources      []internal.Reference           `json:"sources,omitempty" yaml:"sources,omitempty"`
	Messages     []internal.ConversationMessage `json:"messages" yaml:"messages"`
}

func newDocument(t *internal.Transcript) document {
	messages := t.Messages
	if messages == nil {
		messages = []internal.ConversationMessage{}
	}
	return document{
		Session:      t.Session,
		SavedAt:      t.SavedAt,
		MessageCount: len(messages),
		Sources:      conversationSources(messages),
		Messages:     messages,
	}
}

// conversationSources collects the sources of all turns in order of first citation
func conversationSources(messages []internal.ConversationMessage) []internal.Reference {
	var all []internal.Reference
	for _, m := range messages {
		if m.Metadata != nil {
			all = append(all, m.Metadata.Sources...)
		}
	}
	if len(all) == 0 {
		return nil
	}
	return internal.NewDeduplicator().Deduplicate(all)
}
