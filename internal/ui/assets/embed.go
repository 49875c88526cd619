// Package assets embeds the UI's static files. The stylesheet ships inside
// the binary; the only external fetch the UI makes is the datastar module.
package assets

import "embed"

//go:embed static
var staticFS embed.FS

func StaticFS() embed.FS {
	return staticFS
}
