package lexicon

import (
	"embed"
	"io/fs"
)

// defaultFS holds the embedded default lexicon tables, one JSON file per
// language. Embedded so the engine works regardless of working directory;
// a runtime override directory can layer on top via Load.
//
//go:embed data/*.json
var defaultFS embed.FS

// DefaultFS returns the embedded default lexicon filesystem rooted at the
// data directory.
func DefaultFS() fs.FS {
	sub, err := fs.Sub(defaultFS, "data")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	return sub
}
