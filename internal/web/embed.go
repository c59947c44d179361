// Package web provides the embedded page templates and static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/zodakzach/youtube-history-metrics/internal/models"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// GetFileSystem returns the embedded static filesystem with the static folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"stepClass":  stepClass,
		"humanBytes": humanBytes,
		"feedbackOf": feedbackOf,
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render executes the named template. Page templates are named after their
// file; fragments by their define name.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// RegisterStaticRoutes serves the embedded assets under /static/.
// The page and API routes should be registered before calling this function.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))

	e.GET("/static/*", func(c echo.Context) error {
		requestPath := path.Clean(strings.TrimPrefix(c.Request().URL.Path, "/static/"))

		file, err := GetEmbeddedFile(requestPath)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		stat, err := file.Stat()
		file.Close()
		if err != nil || stat.IsDir() {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}

		c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=3600")
		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// GetEmbeddedFile returns a specific file from the embedded static filesystem.
func GetEmbeddedFile(name string) (fs.File, error) {
	staticFS, err := GetFileSystem()
	if err != nil {
		return nil, err
	}
	return staticFS.Open(name)
}

func stepClass(state models.StepState) string {
	return "step-badge step-" + string(state)
}

func humanBytes(n int64) string {
	if n < 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}

func feedbackOf(fb *models.Feedback) models.Feedback {
	if fb == nil {
		return models.Feedback{Kind: models.FeedbackNone}
	}
	return *fb
}
