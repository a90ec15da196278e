package campaign

import "errors"

// Sentinel errors for the campaign executor.
var (
	ErrNotFound     = errors.New("campaign not found")
	ErrNoRecipients = errors.New("campaign audience resolved to zero recipients")
	ErrAlreadySent  = errors.New("campaign is already sending or sent")
)
