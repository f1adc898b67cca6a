package buildinfo

import (
	"fmt"
	"os"
)

var (
	// Commit is the 5-character commit string injected at build time
	Commit string
	// Tag of the binary
	Tag string
)

func init() {
	if c := os.Getenv("LINED_COMMIT_OVERRIDE"); c != "" {
		Commit = c
	}
	if t := os.Getenv("LINED_TAG_OVERRIDE"); t != "" {
		Tag = t
	}
}

// Version renders the tag, or "snapshot" with the commit if untagged.
func Version() string {
	if Tag != "" {
		return Tag
	}
	v := "snapshot"
	if Commit != "" {
		v += fmt.Sprintf(" (#%s)", Commit)
	}
	return v
}
