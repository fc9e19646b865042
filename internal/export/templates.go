package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var entryTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"join":     strings.Join,
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/entry.html")
	if err != nil {
		// Fallback to built-in template if file not found
		entryTemplate = template.Must(template.New("entry").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	entryTemplate = template.Must(template.New("entry").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for entry template rendering
type TemplateData struct {
	Title       string
	Subtitle    string
	ContentHTML template.HTML
	Author      string
	OccurredOn  string
	UpdatedAt   time.Time
	TagNames    []string
}

// RenderEntryHTML renders the entry template with provided data
func RenderEntryHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := entryTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.7; max-width: 720px; margin: 2rem auto; }
    h1 { margin-bottom: 0.25rem; }
    .subtitle { color: #444; font-style: italic; margin-top: 0; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    figure { margin: 1.5rem 0; }
    figure img { max-width: 100%; }
    figcaption { color: #666; font-size: 0.85em; }
    blockquote { border-left: 3px solid #999; margin-left: 0; padding-left: 1rem; color: #333; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Subtitle}}<p class="subtitle">{{.Subtitle}}</p>{{end}}
  <div class="meta">
    {{if .OccurredOn}}{{.OccurredOn}} | {{end}}{{.Author}}
    {{if .TagNames}}<br>{{join .TagNames ", "}}{{end}}
  </div>
  <div>{{.ContentHTML | safeHTML}}</div>
</body>
</html>`
