// Package web holds the embedded page templates served by the settings UI.
package web

import "embed"

// Templates holds the html/template sources.
//
//go:embed templates/*.html
var Templates embed.FS
