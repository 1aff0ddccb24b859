package server

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
)

// mountStatic serves a built board frontend from the configured directory
// and answers unknown API paths with the failure envelope.
func (s *Server) mountStatic() {
	indexPath := ""
	if s.staticDir != "" {
		if info, err := os.Stat(s.staticDir); err != nil || !info.IsDir() {
			s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		} else {
			indexPath = filepath.Join(s.staticDir, "index.html")
			if _, err := os.Stat(indexPath); err != nil {
				s.logger.Warn("index.html not found", "path", indexPath, "error", err)
				indexPath = ""
			}
			assetsDir := filepath.Join(s.staticDir, "assets")
			if _, err := os.Stat(assetsDir); err == nil {
				s.engine.StaticFS("/assets", gin.Dir(assetsDir, false))
			}
		}
	}

	if indexPath != "" {
		s.engine.GET("/", func(c *gin.Context) { c.File(indexPath) })
	}
	s.engine.NoRoute(func(c *gin.Context) {
		if indexPath == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			s.respondError(c, apperr.New(apperr.NotFound, "endpoint %s not found", c.Request.URL.Path))
			return
		}
		c.File(indexPath)
	})
}
