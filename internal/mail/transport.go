package mail

import (
	"context"
	"errors"
)

// Message is a single outbound email.
type Message struct {
	To          string
	ToName      string
	FromEmail   string
	FromName    string
	Subject     string
	HTMLContent string

	// Diagnostic context carried into logs and provider metadata.
	CampaignID string
	SendID     string
}

// SendResult reports the outcome of one send attempt. Expected failure
// modes (provider rejection) come back as Success=false with a Reason,
// not as errors; errors are reserved for conditions the caller may want
// to distinguish (missing connection, failed token refresh, transport
// misconfiguration).
type SendResult struct {
	Success   bool
	MessageID string
	Reason    string
	Transport string
}

// Transport delivers a message through one concrete backend.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}

// Sentinel errors for transport selection.
var (
	ErrNoConnection = errors.New("no active mailbox connection")
	ErrNoTransport  = errors.New("no mail transport configured")
)
