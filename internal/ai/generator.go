package ai

import "context"

// Message is one turn of conversation history handed to the generator.
// Role is "user" or "assistant" in wire form.
type Message struct {
	Role    string
	Content string
}

// Generator produces one assistant reply from the ordered history of a
// conversation. Implementations must respect ctx cancellation; a
// timeout is treated by callers as a generation failure.
type Generator interface {
	Generate(ctx context.Context, history []Message) (string, error)
}
