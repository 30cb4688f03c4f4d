// Sync-Player - Synchronized Media Playback Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/syncplayer

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and user-friendly error
// messages. It integrates with the application's API error format for consistent
// error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Custom validators for the playback protocol
//   - Error translation to human-readable messages
//   - APIError conversion matching the application's error format
//
// # Custom Validation Tags
//
//   - syncfilename: bare media filename - letters, digits, spaces, _.-()[],
//     at most 255 characters, no path separators, no ".."
//   - roomcode: 6-character room code over the alphabet
//     ABCDEFGHJKLMNPQRSTUVWXYZ23456789 (case-insensitive), or "legacy"
//   - fingerprint: client-chosen identity key, 8-128 visible characters
//   - trackkind: "audio" or "subtitle"
//
// The same rules are exported as plain predicates (ValidFilename,
// ValidRoomCode, ValidFingerprint) for call sites that validate a single
// value instead of a tagged struct, such as URL path parameters.
//
// # Quick Start
//
//	type SetPlaylistItem struct {
//	    Filename   string `json:"filename" validate:"required,syncfilename"`
//	    IsExternal bool   `json:"isExternal"`
//	}
//
//	if verr := validation.ValidateStruct(&item); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
//	    return
//	}
//
// # Error Types
//
// ValidationError represents a single field validation failure.
// RequestValidationError aggregates multiple field errors and converts to
// the API error format via ToAPIError:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Filename must be a plain media filename (letters, digits, spaces, _.-()[])",
//	    "details": {"field": "Filename", "tag": "syncfilename", "value": "../etc/passwd"}
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # See Also
//
//   - internal/events: command payload validation before dispatch
//   - internal/api: path parameter validation for media endpoints
//   - github.com/go-playground/validator/v10: Underlying library
package validation
