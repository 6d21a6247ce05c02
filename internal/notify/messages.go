package notify

// messages.go maps technical errors to user-facing messages with codes for
// support reference.
//
// Codes are grouped by category:
//
// # Session Errors (AUTH001-AUTH099)
//
//	AUTH001 - Session expired: Your session has expired
//	          Action: The page will reload so you can sign in again
//	AUTH002 - Not authorized: You are not authorized for this action
//	          Action: Ask an administrator for the required scope
//
// # API Errors (API001-API099)
//
//	API001 - Not found: The requested item was not found
//	         Action: Check the link or return to search
//	API002 - Schema mismatch: Response was in an unexpected format
//	         Action: Please try again or contact support
//	API003 - Unavailable: The scanning service is unavailable
//	         Action: Please try again in a few moments
//	API004 - Timeout: Request timed out
//	         Action: Narrow your filters or try again later
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export busy: Too many exports in progress
//	         Action: Please wait a moment and try again
//	EXP002 - Unsupported format: Export format is not available
//	         Action: Choose one of the offered formats
//
// # Form Errors (VAL001-VAL099)
//
//	VAL001 - Invalid repository: Repository must look like org/name
//	         Action: Check the repository name
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/api"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// kindMessages covers errors the API client has already classified.
var kindMessages = map[api.Kind]UserMessage{
	api.KindSessionExpired: {
		Message: "Your session has expired",
		Action:  "The page will reload so you can sign in again",
		Code:    "AUTH001",
	},
	api.KindNotAuthorized: {
		Message: "You are not authorized for this action",
		Action:  "Ask an administrator for the required scope",
		Code:    "AUTH002",
	},
	api.KindNotFound: {
		Message: "The requested item was not found",
		Action:  "Check the link or return to search",
		Code:    "API001",
	},
	api.KindSchemaMismatch: {
		Message: api.UnexpectedFormatMessage,
		Action:  "Please try again or contact support",
		Code:    "API002",
	},
}

var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "Too many exports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Export format is not available",
			Action:  "Choose one of the offered formats",
			Code:    "EXP002",
		},
	},
	{
		pattern: "invalid repository",
		msg: UserMessage{
			Message: "Repository must look like org/name",
			Action:  "Check the repository name",
			Code:    "VAL001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The scanning service is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "API003",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Narrow your filters or try again later",
			Code:    "API004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Narrow your filters or try again later",
			Code:    "API004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. API errors with a
// known kind map directly; server and status messages from the API are shown
// as-is; everything else is matched against known patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if msg, ok := kindMessages[apiErr.Kind]; ok {
			if apiErr.Kind == api.KindSchemaMismatch || apiErr.Kind == api.KindNotAuthorized {
				msg.Message = apiErr.Message
			}
			return msg
		}
		if apiErr.Kind == api.KindServer || apiErr.Kind == api.KindHTTPStatus {
			return UserMessage{Message: apiErr.Message, Action: defaultMessage.Action, Code: "API000"}
		}
		if apiErr.Err == nil {
			return UserMessage{Message: apiErr.Message, Action: defaultMessage.Action, Code: defaultMessage.Code}
		}
	}

	errStr := strings.ToLower(err.Error())
	if apiErr != nil && apiErr.Err != nil {
		errStr = strings.ToLower(apiErr.Err.Error())
	}

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if apiErr != nil {
		return UserMessage{Message: apiErr.Message, Action: defaultMessage.Action, Code: defaultMessage.Code}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
