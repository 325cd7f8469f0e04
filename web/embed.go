// Package web holds the HTML templates served by the CampusCircle web tier.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var files embed.FS

// Templates returns the template tree rooted at the templates directory.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		// The directory is embedded at build time
		panic(err)
	}
	return sub
}
