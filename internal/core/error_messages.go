package core

// error_messages.go maps technical errors to user-facing messages with a
// support code.
//
// Known sentinel errors are matched first with errors.Is. Anything else is
// matched case-insensitively against substrings of its message, first match
// wins, so specific patterns sit before general ones.
//
// # Store Errors (DB001-DB099)
//
//	DB001 - Duplicate value           "duplicate key", "violates unique"
//	DB002 - Missing referenced record "violates foreign key"
//	DB003 - Store unavailable         "connection refused", "connection reset"
//	DB004 - Store timeout             "timeout"
//	DB005 - Store busy                "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date             "invalid date", "invalid log_date", ...
//	VAL002 - Invalid number           "invalid number", "invalid base_salary"
//	VAL003 - Required value           "is required"
//	VAL004 - Missing column           ErrMissingColumns
//	VAL005 - Invalid value            "invalid"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          "file too large", "request body too large"
//	FILE002 - Malformed file          "read header", "parse line"
//	FILE003 - No file                 "no file provided"
//	FILE004 - Empty file              ErrEmptyFile
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Unknown import kind      ErrUnknownKind
//	IMP002 - System busy              ErrTooManyImports
//	IMP003 - Import interrupted       ErrImportInterrupted
//	IMP004 - Job not found            ErrJobNotFound
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid period           hr.ErrInvalidPeriod
//	REQ002 - Not found                hr.ErrNotFound
//	REQ003 - Request cancelled        context.Canceled
//	REQ004 - Request timed out        context.DeadlineExceeded
//
// # Access Errors
//
//	AUTH001 - Not authorized          "unauthorized", "forbidden"
//	RATE001 - Rate limited            "rate limit"
//
// # Default (ERR000)
//
// ERR000 is the fallback. Support should check the logs for the technical
// error, which is always logged alongside the request id.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// Order matters: ErrMissingColumns and ErrEmptyFile must win over the
// generic context errors a wrapped chain might also carry.
var sentinelMessages = []sentinelMessage{
	{ErrMissingColumns, UserMessage{
		Message: "Required column is missing from the file",
		Action:  "Download the template and check the header row",
		Code:    "VAL004",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and data rows",
		Code:    "FILE004",
	}},
	{ErrUnknownKind, UserMessage{
		Message: "Unknown import type",
		Action:  "Use staff_members, work_logs or company_holidays",
		Code:    "IMP001",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}},
	{ErrImportInterrupted, UserMessage{
		Message: "Import stopped before the end of the file",
		Action:  "Check the job counters; re-run the remaining rows",
		Code:    "IMP003",
	}},
	{ErrJobNotFound, UserMessage{
		Message: "Import job not found",
		Action:  "Check the job id",
		Code:    "IMP004",
	}},
	{hr.ErrInvalidPeriod, UserMessage{
		Message: "Invalid date range or period",
		Action:  "Use YYYY-MM-DD dates with start before end, or a YYYY-MM month",
		Code:    "REQ001",
	}},
	{hr.ErrNotFound, UserMessage{
		Message: "Record not found",
		Action:  "Check the identifier and try again",
		Code:    "REQ002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ003",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or a narrower date range",
		Code:    "REQ004",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Store
	{"duplicate key", UserMessage{"A record with this value already exists", "Remove duplicate rows and retry them", "DB001"}},
	{"violates unique", UserMessage{"A record with this value already exists", "Remove duplicate rows and retry them", "DB001"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Import staff before their attendance", "DB002"}},
	{"connection refused", UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB003"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB003"}},
	{"timeout", UserMessage{"Database operation timed out", "Please try again later", "DB004"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB005"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE001"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller parts", "FILE001"}},
	{"read header", UserMessage{"The header row could not be read", "Save the file as UTF-8 delimited text", "FILE002"}},
	{"parse line", UserMessage{"The line could not be parsed", "Check quoting in the file", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Choose a CSV file to upload", "FILE003"}},

	// Access
	{"unauthorized", UserMessage{"You are not signed in", "Sign in and try again", "AUTH001"}},
	{"forbidden", UserMessage{"You do not have access to this resource", "Ask an administrator for access", "AUTH001"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},

	// Validation
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid log_date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid holiday_date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid hire_date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use a plain decimal such as 55000.00", "VAL002"}},
	{"invalid base_salary", UserMessage{"Invalid number format detected", "Use a plain decimal such as 55000.00", "VAL002"}},
	{"is required", UserMessage{"Required value is empty", "Fill in every required column", "VAL003"}},
	{"invalid", UserMessage{"A value is not in the allowed format", "Check the template for allowed values", "VAL005"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("import: %w", ErrTooManyImports))
//	// msg.Code == "IMP002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
