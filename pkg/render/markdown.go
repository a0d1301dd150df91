package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dkoosis/mdreport/pkg/report"
)

// DefaultTemplate is the name of the built-in report template.
const DefaultTemplate = "report.md.tmpl"

// ErrTemplateNotFound is returned when no search location holds the template.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed templates/*.tmpl
var builtin embed.FS

// Markdown renders a bag through a text template.
type Markdown struct {
	tmpl   *template.Template
	source string
}

// LoadTemplate looks up name in dirs, in order, and then among the built-in
// templates.
func LoadTemplate(dirs []string, name string) (*Markdown, error) {
	if name == "" {
		name = DefaultTemplate
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", path, err)
		}
		return parseTemplate(name, path, string(data))
	}

	data, err := builtin.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (searched %s)", ErrTemplateNotFound, name, searched(dirs))
	}
	return parseTemplate(name, "builtin:"+name, string(data))
}

func searched(dirs []string) string {
	all := append([]string{}, dirs...)
	all = append(all, "builtin")
	return strings.Join(all, ", ")
}

func parseTemplate(name, source, text string) (*Markdown, error) {
	tmpl, err := template.New(name).Funcs(funcs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", source, err)
	}
	return &Markdown{tmpl: tmpl, source: source}, nil
}

// Source names where the template was loaded from.
func (m *Markdown) Source() string {
	return m.source
}

// Render executes the template with b.
func (m *Markdown) Render(b *Bag) (string, error) {
	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, b); err != nil {
		return "", fmt.Errorf("render %s: %w", m.source, err)
	}
	return buf.String(), nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"cell":  cell,
		"code":  codeBlock,
		"extra": extra,
		"lower": strings.ToLower,
		"join":  strings.Join,
		"logs":  func(lines []string) string { return codeBlock("text", strings.Join(lines, "\n")) },
	}
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// codeBlock wraps body in a fence longer than any backtick run inside it.
func codeBlock(lang, body string) string {
	longest, run := 0, 0
	for _, r := range body {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return fence + lang + "\n" + strings.TrimRight(body, "\n") + "\n" + fence
}

// extra renders one attachment as Markdown.
func extra(e report.Extra) string {
	name := e.Name
	if name == "" {
		name = e.Format
	}
	switch e.Format {
	case report.FormatURL:
		return fmt.Sprintf("- [%s](%s)", name, e.Content)
	case report.FormatImage:
		src := e.Content
		if !strings.Contains(src, "://") && !strings.HasPrefix(src, "data:") {
			src = "data:" + e.MIMEType + ";base64," + src
		}
		return fmt.Sprintf("![%s](%s)", name, src)
	case report.FormatJSON:
		return "**" + name + "**\n\n" + codeBlock("json", e.Content)
	case report.FormatHTML:
		return e.Content
	default:
		return "**" + name + "**\n\n" + codeBlock("", e.Content)
	}
}
