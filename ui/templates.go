package ui

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"strings"

	"epistat/domain/association"

	"github.com/gin-gonic/gin"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"measure": func(m association.Measure, prec int) string {
			return m.Format(prec)
		},
		"pvalue": formatPValue,
		"significant": func(r association.Result) bool {
			return r.Significant(0.05)
		},
		"pct": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"num": func(v float64) string { return fmt.Sprintf("%.4g", v) },
		"cramer": func(v float64) string {
			if v < 0 {
				return "n/a"
			}
			return fmt.Sprintf("%.3f", v)
		},
		"display": func(v string) string {
			if v == "" {
				return "(empty)"
			}
			return v
		},
		"safeHTML": func(b []byte) template.HTML {
			// Only fed profile HTML; its Markdown escapes every dataset value.
			return template.HTML(b)
		},
		"upper": strings.ToUpper,
	}
}

// formatPValue prints small p-values in scientific notation
func formatPValue(m association.Measure) string {
	if !m.Defined {
		return "undefined"
	}
	if m.Value != 0 && m.Value < 1e-4 {
		return fmt.Sprintf("%.2e", m.Value)
	}
	return fmt.Sprintf("%.4f", m.Value)
}

// parseTemplates loads every page and the shared layout from the embedded FS
func parseTemplates(files fs.FS) (*template.Template, error) {
	templatesFS, err := fs.Sub(files, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	names, err := fs.Glob(templatesFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}

	tmpl := template.New("").Funcs(templateFuncs())
	for _, name := range names {
		content, err := fs.ReadFile(templatesFS, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
	}
	log.Printf("[TemplateInit] Parsed %d templates", len(names))
	return tmpl, nil
}

// renderTemplate executes a template with the given data
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data gin.H) {
	// First render to a buffer to catch any errors before writing to response
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("Template error for %s: %v", templateName, err)
		c.AbortWithStatusJSON(500, gin.H{"error": "Template rendering failed", "details": err.Error()})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Writer.WriteHeader(status)
	if _, err := buf.WriteTo(c.Writer); err != nil {
		log.Printf("Error writing template response: %v", err)
	}
}
