package http

import "embed"

// staticFiles holds the dashboard assets.
//
//go:embed static
var staticFiles embed.FS
