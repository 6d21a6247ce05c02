package templates

import (
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/validation"
)

// ScanCategories are the plugin categories offered on the scan form.
var ScanCategories = []string{
	"vulnerability",
	"secret",
	"static_analysis",
	"inventory",
	"configuration",
	"sbom",
}

// ServiceOptions are the version-control services a scan can target.
var ServiceOptions = []string{"github", "gitlab", "bitbucket", "azure"}

// KeyScopes are suggested scopes for new API keys.
var KeyScopes = []string{"*", "github/*", "gitlab/*", "bitbucket/*"}

// ConfirmExportParams describes the export confirmation dialog.
type ConfirmExportParams struct {
	Format    string
	ExportURL string // Where to go on confirm
	CancelURL string // Where to go on cancel
}

// firstPrefixed returns the first message for field or any of its
// elements, e.g. "categories[1]".
func firstPrefixed(errs validation.Errors, field string) string {
	for _, fe := range errs {
		if fe.Field == field || strings.HasPrefix(fe.Field, field+"[") {
			return fe.Message
		}
	}
	return ""
}
