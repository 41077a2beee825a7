package mail

import "context"

// Sender submits an assembled message. Implementations must be safe for
// concurrent use; the dispatcher calls Send from many goroutines.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg *Message) error

func (f SenderFunc) Send(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}
