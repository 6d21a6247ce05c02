// This file contains helpers shared across handlers.
package web

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/artemis-web/internal/logging"
)

// MaxFormSize bounds posted form bodies.
const MaxFormSize = 1 << 20

// parseForm reads a posted form, bounded by MaxFormSize.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormSize)
	return r.ParseForm()
}

// checkbox reports whether a posted checkbox is ticked.
func checkbox(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.PostForm.Get(name))) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// writeDownload sends body as an attachment.
func writeDownload(w http.ResponseWriter, r *http.Request, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(body); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "file", filename, "error", err)
	}
}

// redirectBack sends the browser to fallback, or to the Referer when it is
// a local path.
func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	target := fallback
	if ref := r.Referer(); ref != "" {
		if i := strings.Index(ref, "://"); i >= 0 {
			rest := ref[i+3:]
			if j := strings.Index(rest, "/"); j >= 0 && rest[:j] == r.Host {
				target = rest[j:]
			}
		} else if localPath(ref) {
			target = ref
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
