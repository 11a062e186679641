// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/mtxpanel/internal/log"
)

// uiHandler serves the static panel assets with checks against path
// traversal, symlink escapes and directory listing. Requests for "/" fall
// back to index.html.
func (s *Server) uiHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "ui")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if path == "" || path == "/" {
			path = "/index.html"
		}
		if isPathTraversal(path) {
			logger.Warn().
				Str("event", "ui.denied").
				Str("path", r.URL.Path).
				Str("reason", "path_escape").
				Msg("detected traversal sequence")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		absDir, err := filepath.Abs(s.cfg.UIDir)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		fullPath := filepath.Join(absDir, filepath.FromSlash(path))

		realPath, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		realDir, err := filepath.EvalSymlinks(absDir)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		rel, err := filepath.Rel(realDir, realPath)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			logger.Warn().
				Str("event", "ui.denied").
				Str("path", r.URL.Path).
				Str("resolved_path", realPath).
				Str("reason", "path_escape").
				Msg("resolved path escapes UI directory")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(realPath)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if info.IsDir() {
			index := filepath.Join(realPath, "index.html")
			if _, err := os.Stat(index); err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			realPath = index
		}

		http.ServeFile(w, r, realPath)
	})
}

// isPathTraversal rejects encoded and literal traversal sequences as well
// as NUL bytes, decoding twice to catch double-encoded attempts.
func isPathTraversal(path string) bool {
	candidates := []string{path}
	if dec, err := url.PathUnescape(path); err == nil {
		candidates = append(candidates, dec)
		if dec2, err := url.PathUnescape(dec); err == nil {
			candidates = append(candidates, dec2)
		}
	}
	for _, c := range candidates {
		if strings.Contains(c, "\x00") {
			return true
		}
		c = strings.ReplaceAll(c, "\\", "/")
		for _, seg := range strings.Split(c, "/") {
			if seg == ".." {
				return true
			}
		}
	}
	return false
}
