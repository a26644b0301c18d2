package ir

// Version constants for the journal schema and the session core.
const (
	// IRVersion is the version of the serialized entry/transaction schema.
	IRVersion = "1"

	// CoreVersion is the txrepl core version.
	CoreVersion = "0.1.0"

	// PCHFormatVersion is the precompiled artifact format this build reads.
	PCHFormatVersion = 1

	// BuildID identifies the build that wrote a precompiled artifact.
	BuildID = "txrepl-" + CoreVersion
)
