package ui

import "embed"

//go:embed templates/*.html static/css/*.css
var embeddedFiles embed.FS
