package web

import (
	"embed"
	"io/fs"
)

//go:embed all:static
var assets embed.FS

// FS contains the browser client.
var FS, _ = fs.Sub(assets, "static")
