package internal

import "fmt"

var (
	// These variables are here only to show current version. They are set in makefile during build process
	CollectorVersion         = "devel"
	GitRevision              = "devel"
	CollectorVersionRevision = fmt.Sprintf("%s-%s", CollectorVersion, GitRevision)
)
