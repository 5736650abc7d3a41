package polingest

import "time"

// Exit codes for semantic error classification.
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to the store
	ExitParseError      = 12 // Input file unreadable or malformed
	ExitStoreError      = 13 // Store query or insert failed mid-run
)

const (
	// DefaultRetryInitialDelay is the default initial delay before the first connection retry.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between connection retries.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of connection retries.
	DefaultRetryMaxAttempts = 3

	// DefaultDatabase is the database used when none is configured.
	DefaultDatabase = "postgres"

	// DefaultAppName is reported to PostgreSQL as application_name.
	DefaultAppName = "polingest"

	// DefaultWorkers is the number of concurrent ingestion runs the server allows.
	DefaultWorkers = 2

	// DefaultMaxUploadMB caps the size of an uploaded file.
	DefaultMaxUploadMB = 50

	// DefaultListenAddress is where the HTTP server listens when nothing is configured.
	DefaultListenAddress = ":3000"

	// DefaultMetricsPath exposes prometheus collectors.
	DefaultMetricsPath = "/metrics"

	// DefaultUserType is assigned to users whose userType column is empty.
	DefaultUserType = "individual"
)
