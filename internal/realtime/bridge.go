package realtime

import (
	"time"

	"github.com/iksnae/chat-session/internal"
)

// HistorySink receives pushed assistant turns; *internal.SessionManager
// satisfies it.
type HistorySink interface {
	AppendMessage(msg internal.ConversationMessage)
}

// Bridge forwards chat_response frames into sink as assistant turns and logs
// error frames. The returned func detaches both listeners.
func Bridge(c *Client, sink HistorySink) func() {
	normalizer := internal.NewNormalizer()
	dedup := internal.NewDeduplicator()

	offResponse := c.On(TypeChatResponse, func(f Frame) {
		var p ChatResponsePayload
		if err := f.Decode(&p); err != nil {
			internal.LogWarn("Ignoring malformed chat_response: %v", err)
			return
		}
		sink.AppendMessage(ToMessage(p, normalizer, dedup))
	})
	offError := c.On(TypeError, func(f Frame) {
		var p ErrorPayload
		if err := f.Decode(&p); err != nil {
			return
		}
		internal.LogWarn("Server error: %s", p.Message)
	})

	return func() {
		offResponse()
		offError()
	}
}

// ToMessage converts a chat_response payload into a history entry
func ToMessage(p ChatResponsePayload, n *internal.Normalizer, d *internal.Deduplicator) internal.ConversationMessage {
	role := internal.RoleAssistant
	if p.Sender != "" {
		role = n.NormalizeRole(p.Sender)
	}

	var md *internal.MessageMetadata
	if refs := d.Deduplicate(n.NormalizeReferences(p.References)); len(refs) > 0 {
		md = &internal.MessageMetadata{Sources: refs}
	}

	msg := internal.NewMessage(role, p.Message, time.Now(), md)
	if p.Timestamp > 0 {
		msg.Timestamp = n.NormalizeTimestamp(p.Timestamp)
	}
	return msg
}
