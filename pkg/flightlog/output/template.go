package output

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// defaultTemplate prints one tab separated line per entry.
const defaultTemplate = "{{range .Entries}}{{.Flight}}:{{.Index}}\t{{.Time}}\t{{.Name}}\t{{.Data}}\n{{end}}"

// TemplateFormatter renders a Result through a user supplied text/template.
// The template is parsed on first use and again after SetTemplate.
type TemplateFormatter struct {
	mu     sync.Mutex
	src    string
	parsed *template.Template
}

// templateView is what the template sees: the result plus a few totals.
type templateView struct {
	*Result
	TotalBytes int64
	Rows       int
}

// NewTemplateFormatter returns a formatter for src.
func NewTemplateFormatter(src string) *TemplateFormatter {
	return &TemplateFormatter{src: src}
}

// SetTemplate replaces the template source.
func (f *TemplateFormatter) SetTemplate(src string) {
	f.mu.Lock()
	f.src, f.parsed = src, nil
	f.mu.Unlock()
}

// Functions available to templates, e.g. {{stamp .Time}} or
// {{date .RetrievedAt "2006-01-02"}}.
var templateFuncs = template.FuncMap{
	"date": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"stamp": func(ms int64) string {
		return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
	},
	"bytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"ago":   humanize.Time,
	"flight": func(n uint16) string {
		return fmt.Sprintf("FL%03d", n)
	},
}

func (f *TemplateFormatter) compiled() (*template.Template, error) {
	if f.parsed != nil {
		return f.parsed, nil
	}
	t, err := template.New("output").Funcs(templateFuncs).Parse(f.src)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	f.parsed = t
	return t, nil
}

// Format executes the template against r.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.compiled()
	if err != nil {
		return err
	}
	return t.Execute(w, templateView{Result: r, TotalBytes: r.TotalBytes(), Rows: r.Len()})
}

func init() {
	Register("template", func() Formatter { return NewTemplateFormatter(defaultTemplate) })
}

var _ Formatter = (*TemplateFormatter)(nil)
