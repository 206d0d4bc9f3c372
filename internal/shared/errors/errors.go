package errors

import "errors"

var (
	ErrMissingBotToken   = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrNoFeedsConfigured = errors.New("at least one feed source must be configured")
	ErrUnexpectedStatus  = errors.New("unexpected feed response status")
	ErrEmptyFeedBody     = errors.New("feed response body is empty")
)
