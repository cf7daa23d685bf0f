package domain

// ChatMessage is the sender+content projection of a message sent to the
// remote dialogue service as conversation history.
type ChatMessage struct {
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// History projects a conversation's messages down to the shape the remote
// dialogue call accepts.
func History(msgs []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Sender: m.Sender, Content: m.Content})
	}
	return out
}
