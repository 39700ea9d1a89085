// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes of the voice client. Codes classify
//              failures of capture, encoding and speech output so callers can
//              branch on them without parsing messages.
// Author: msto63 with Claude
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-08
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with core error codes
// - 2025-12-08 v0.2.0: Voice client taxonomy (capture, encoding, speech)

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeInvalidState Code = "INVALID_STATE"
	CodeTimeout      Code = "TIMEOUT"

	// Capture
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeDeviceNotFound      Code = "DEVICE_NOT_FOUND"
	CodeUnsupportedPlatform Code = "UNSUPPORTED_PLATFORM"
	CodeEncodingUnsupported Code = "ENCODING_UNSUPPORTED"
	CodeRecorderStalled     Code = "RECORDER_STALLED"

	// Speech output
	CodeRemoteTTSFailure  Code = "REMOTE_TTS_FAILURE"
	CodeSpeechUnsupported Code = "SPEECH_UNSUPPORTED"
	CodePlaybackError     Code = "PLAYBACK_ERROR"

	// Service and network
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeExternalService    Code = "EXTERNAL_SERVICE_ERROR"

	// Configuration
	CodeInvalidConfig Code = "INVALID_CONFIG"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the error code is a known valid code
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown, CodeInternal, CodeNotFound, CodeInvalidInput, CodeInvalidState, CodeTimeout,
		CodePermissionDenied, CodeDeviceNotFound, CodeUnsupportedPlatform, CodeEncodingUnsupported, CodeRecorderStalled,
		CodeRemoteTTSFailure, CodeSpeechUnsupported, CodePlaybackError,
		CodeNetworkError, CodeServiceUnavailable, CodeExternalService,
		CodeInvalidConfig:
		return true
	default:
		return false
	}
}

// Category returns the high-level category of the error code
func (c Code) Category() string {
	switch c {
	case CodePermissionDenied, CodeDeviceNotFound, CodeUnsupportedPlatform, CodeEncodingUnsupported, CodeRecorderStalled:
		return "capture"
	case CodeRemoteTTSFailure, CodeSpeechUnsupported, CodePlaybackError:
		return "speech"
	case CodeNetworkError, CodeServiceUnavailable, CodeExternalService:
		return "service"
	case CodeInvalidConfig:
		return "configuration"
	default:
		return "generic"
	}
}

// Recoverable reports whether the condition is handled internally and
// never surfaced as a user-facing failure
func (c Code) Recoverable() bool {
	return c == CodeRemoteTTSFailure
}
