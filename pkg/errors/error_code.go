package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidRunConfig     ErrorCode = 102
	ErrCodeInvalidTimeKey       ErrorCode = 103
	ErrCodeInvalidGranularity   ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Dataset errors (200-299)
	ErrCodeChartFetchFailed      ErrorCode = 200
	ErrCodeDataCheckFailed       ErrorCode = 201
	ErrCodeDataDownloadFailed    ErrorCode = 202
	ErrCodeBaselinePreloadFailed ErrorCode = 203
	ErrCodeServerRejected        ErrorCode = 204
	ErrCodeNoDataFound           ErrorCode = 205

	// Stream errors (300-399)
	ErrCodeSessionAlreadyOpen ErrorCode = 300
	ErrCodeSessionNotOpen     ErrorCode = 301
	ErrCodeDialFailed         ErrorCode = 302
	ErrCodeHandshakeFailed    ErrorCode = 303
	ErrCodeMalformedMessage   ErrorCode = 304
	ErrCodeUnknownMessageType ErrorCode = 305
	ErrCodeStreamClosed       ErrorCode = 306
	ErrCodeTerminalError      ErrorCode = 307

	// Reconcile errors (400-499)
	ErrCodeBaselineNotLoaded ErrorCode = 400
	ErrCodeDuplicateTimeKey  ErrorCode = 401

	// Marker errors (500-599)
	ErrCodeMarkerNotFound ErrorCode = 500

	// Render errors (600-699)
	ErrCodeSurfaceNotAttached ErrorCode = 600
	ErrCodeUnknownIndicator   ErrorCode = 601

	// Export errors (700-799)
	ErrCodeExportFailed      ErrorCode = 700
	ErrCodeExportWriteFailed ErrorCode = 701

	// Version errors (800-899)
	ErrCodeVersionMismatch ErrorCode = 800
	ErrCodeInvalidVersion  ErrorCode = 801
)
