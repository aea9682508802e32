// Package scripts holds the built-in Risor report scripts.
package scripts

import "embed"

// FS contains the built-in scripts and the modules they import.
//
//go:embed *.risor
var FS embed.FS
