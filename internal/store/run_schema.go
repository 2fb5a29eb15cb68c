package store

import "embed"

// runSchemas is the embedded migration set for the ephemeral, run-scoped
// orchestrator database: one table for the PR dependency queue, one for
// per-iteration status records.
//
//go:embed migrations/*.sql
var runSchemas embed.FS
