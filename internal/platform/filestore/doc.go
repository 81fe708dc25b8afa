// Package filestore persists work queue envelopes as YAML files, one file
// per envelope, for single-node deployments without a database. Files are
// written atomically through a temp file and rename; files that cannot be
// parsed are moved to a quarantine directory instead of blocking recovery.
package filestore
