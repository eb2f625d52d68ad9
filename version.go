package audittrail

import (
	_ "embed"
)

// Version is the current version of the module.
//
//go:embed VERSION
var Version string
