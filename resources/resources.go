// Package resources holds the files served to the browser when no resource directory is configured.
package resources

import (
	"embed"
	"io/fs"
)

//go:embed static
var static embed.FS

// FS returns the packaged resource root.
func FS() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
