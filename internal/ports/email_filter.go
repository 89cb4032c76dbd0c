// Package ports holds the contracts of the long-running mail ingestion surfaces.
package ports

// EmailFilter is a mail ingestion surface that classifies messages as they
// pass through the MTA
type EmailFilter interface {
	// Start starts the filter listener
	Start() error

	// Stop stops the filter listener
	Stop() error
}
