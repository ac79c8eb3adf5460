package web

import (
	"embed"
	"io/fs"
)

// StaticAssets holds the settings console scripts and styles
//
//go:embed static
var StaticAssets embed.FS

// GetStaticFS returns the embedded static files rooted at static/
func GetStaticFS() (fs.FS, error) {
	return fs.Sub(StaticAssets, "static")
}
