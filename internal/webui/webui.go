// Package webui embeds the daemon's static admin panel (index.html/css/js
// plus a favicon), served by the HTTP transport alongside the JSON API.
//
// A package-level go:embed directive over a "static" subdirectory is
// exposed here as an fs.FS rather than a ready-made http.Handler, so the
// HTTP transport can mount it under its own routes (GET /, /index.css,
// /index.js, /favicon.svg) instead of a generic /static/ prefix.
package webui

import (
	"embed"
	"io/fs"
)

//go:embed static
var files embed.FS

// FS returns the embedded static tree rooted at "static", ready for
// http.FileServer(http.FS(...)).
func FS() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		// static/ is embedded at build time; this can only fail if the
		// directory were removed from the module, which is a build-time
		// programming error, not a runtime condition to recover from.
		panic(err)
	}
	return sub
}
