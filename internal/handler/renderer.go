package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
)

// Renderer manages template parsing and rendering with isolated template sets.
// It supports two layouts:
//   - "auth" layout for the sign-in pages (login, register)
//   - "app" layout for everything else (profile, landing pages)
//
// Templates are organized as:
//   - layouts/auth.html, layouts/app.html - base layouts
//   - partials/*.html - fragments shared by layouts and sent alone to htmx
//   - pages/auth/*.html - auth pages (use auth layout)
//   - pages/*.html - app pages (use app layout)
type Renderer struct {
	fsys   fs.FS
	logger *slog.Logger
	isDev  bool

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// FS is rooted at the templates directory.
	FS     fs.FS
	Logger *slog.Logger

	// IsDev re-parses the templates on every render.
	IsDev bool
}

// NewRenderer parses every template in cfg.FS.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if cfg.FS == nil {
		return nil, fmt.Errorf("renderer: templates filesystem is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	r := &Renderer{
		fsys:   cfg.FS,
		logger: cfg.Logger,
		isDev:  cfg.IsDev,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-parses all templates.
func (r *Renderer) Reload() error {
	templates, err := loadTemplates(r.fsys)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

func loadTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	partialFiles, err := fs.Glob(fsys, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	// Each partial is also parsed alone, keyed by its base name ("toast" for "toast.html")
	for _, partial := range partialFiles {
		name := baseName(partial)
		tmpl, err := template.New(name).Funcs(TemplateFuncs()).ParseFS(fsys, partial)
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", partial, err)
		}
		templates["partial/"+name] = tmpl
	}

	layout := func(name string) (*template.Template, error) {
		files := append([]string{"layouts/" + name + ".html"}, partialFiles...)
		tmpl, err := template.New(name).Funcs(TemplateFuncs()).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s layout: %w", name, err)
		}
		return tmpl, nil
	}

	authBase, err := layout("auth")
	if err != nil {
		return nil, err
	}
	appBase, err := layout("app")
	if err != nil {
		return nil, err
	}

	groups := []struct {
		pattern string
		prefix  string
		base    *template.Template
	}{
		{"pages/auth/*.html", "auth/", authBase},
		{"pages/*.html", "", appBase},
	}
	for _, g := range groups {
		pages, err := fs.Glob(fsys, g.pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", g.pattern, err)
		}
		for _, page := range pages {
			tmpl, err := g.base.Clone()
			if err != nil {
				return nil, fmt.Errorf("failed to clone layout for %s: %w", page, err)
			}
			if tmpl, err = tmpl.ParseFS(fsys, page); err != nil {
				return nil, fmt.Errorf("failed to parse page %s: %w", page, err)
			}
			templates[g.prefix+baseName(page)] = tmpl
		}
	}

	return templates, nil
}

func baseName(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	if r.isDev {
		if err := r.Reload(); err != nil {
			return nil, fmt.Errorf("template reload failed: %w", err)
		}
	}
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	return tmpl, nil
}

// Render renders a page template to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, err := r.lookup(name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, baseTemplateName(name), data)
}

// RenderHTTP renders a page template with status 200.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	r.RenderHTTPStatus(w, http.StatusOK, name, data)
}

// RenderHTTPStatus renders a page template with the given status. The page
// is rendered to a buffer first so a template error can still become a 500.
func (r *Renderer) RenderHTTPStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template render failed", "name", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderPartial renders a partial template (for htmx responses).
// The partial file defines a template whose name matches the file name.
func (r *Renderer) RenderPartial(w io.Writer, name string, data any) error {
	tmpl, err := r.lookup("partial/" + name)
	if err != nil {
		return err
	}
	return tmpl.ExecuteTemplate(w, name, data)
}

// baseTemplateName determines which base template to execute.
func baseTemplateName(name string) string {
	if strings.HasPrefix(name, "auth/") {
		return "auth"
	}
	return "app"
}

// ListTemplates returns the names of all loaded templates.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
