package main

import (
	"encoding/json"
	"time"

	"github.com/jward/stratum"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`

	// Conflicts lists the override conflicts met while answering a
	// metadata query.
	Conflicts []stratum.ConflictInfo `json:"conflicts,omitempty"`
}

// CLIImportStats summarizes an import run.
type CLIImportStats struct {
	Bundles int `json:"bundles"`
	Entries int `json:"entries"`
}

// CLIEntry is a stored metadata entry with its payload rendered as JSON.
type CLIEntry struct {
	FQName     string          `json:"fq_name"`
	Kind       string          `json:"kind"`
	Source     string          `json:"source"`
	ImportedAt time.Time       `json:"imported_at"`
	Names      []string        `json:"names"`
	Message    json.RawMessage `json:"message"`
}

// CLINames is a plain list of qualified names.
type CLINames []string
