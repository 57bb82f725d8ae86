// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Comment operations
	OpCommentsLoad  Op = "load comments"
	OpCommentsParse Op = "parse comments"

	// Settings operations
	OpSettingsLoad Op = "load settings"
	OpSettingsSave Op = "save settings"
	OpOffsetSave   Op = "save series offset"
	OpSessionSave  Op = "save session"

	// Playback operations
	OpPlayerConnect Op = "connect to player"
	OpPlayerPoll    Op = "read player position"
	OpPlaybackSeek  Op = "seek"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
