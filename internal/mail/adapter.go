package mail

import (
	"context"
	"errors"
)

// Adapter routes each message to the right backend: the sender's
// connected mailbox when one exists, otherwise the configured bulk
// provider. A missing connection is the only condition that triggers
// the fallback. Token refresh failures and mailbox send errors are
// surfaced to the caller unchanged, because rerouting those through
// the provider would change the message's From identity silently.
type Adapter struct {
	mailbox  *MailboxTransport
	provider Transport
}

// NewAdapter creates an adapter. Either transport may be nil when the
// deployment doesn't use it.
func NewAdapter(mailbox *MailboxTransport, provider Transport) *Adapter {
	return &Adapter{mailbox: mailbox, provider: provider}
}

// Send delivers the message as userID, preferring their mailbox.
func (a *Adapter) Send(ctx context.Context, userID string, msg *Message) (*SendResult, error) {
	if a.mailbox != nil && userID != "" {
		res, err := a.mailbox.SendAs(ctx, userID, msg)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNoConnection) {
			return nil, err
		}
	}
	if a.provider == nil {
		return nil, ErrNoTransport
	}
	return a.provider.Send(ctx, msg)
}

// SendViaMailbox delivers strictly through the user's mailbox with no
// provider fallback. Used for one-to-one mail that must come from the
// user's own address.
func (a *Adapter) SendViaMailbox(ctx context.Context, userID string, msg *Message) (*SendResult, error) {
	if a.mailbox == nil {
		return nil, ErrNoTransport
	}
	return a.mailbox.SendAs(ctx, userID, msg)
}
