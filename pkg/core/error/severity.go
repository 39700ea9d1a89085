// File: severity.go
// Title: Error Severity Levels
// Description: Severity classification for errors, derived from codes unless
//              set explicitly.
// Author: msto63 with Claude
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-12-08
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with severity levels
// - 2025-12-08 v0.2.0: Severity mapping for the voice client codes

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow indicates a condition that is recovered automatically
	SeverityLow Severity = iota

	// SeverityMedium indicates a failed operation the caller may retry
	SeverityMedium

	// SeverityHigh indicates a failed operation that needs user action
	SeverityHigh

	// SeverityCritical indicates the component cannot work on this platform
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// GetSeverityFromCode returns the default severity for an error code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeRemoteTTSFailure:
		return SeverityLow
	case CodePermissionDenied, CodeDeviceNotFound, CodeSpeechUnsupported, CodeRecorderStalled:
		return SeverityHigh
	case CodeUnsupportedPlatform, CodeEncodingUnsupported:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}
