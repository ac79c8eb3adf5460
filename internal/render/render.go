// Package render produces the settings screen markup: one row per field
// with its current value, initial visibility and dependency attributes.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/opticore/opticore/internal/dependency"
	"github.com/opticore/opticore/internal/fields"
	"github.com/opticore/opticore/internal/settings"
)

// InputPrefix is prepended to every field id in form input names
const InputPrefix = "opticore-setting-"

// NonceField is the form input carrying the anti-forgery token
const NonceField = "opticore-nonce"

// Renderer renders fields of one catalog
type Renderer struct {
	catalog    *fields.Catalog
	normalizer *dependency.Normalizer
	tmpl       *template.Template
}

// NewRenderer creates a renderer. The normalizer caches each field's
// canonical dependency expression.
func NewRenderer(catalog *fields.Catalog, normalizer *dependency.Normalizer) *Renderer {
	if normalizer == nil {
		normalizer = dependency.NewNormalizer()
	}
	return &Renderer{
		catalog:    catalog,
		normalizer: normalizer,
		tmpl:       template.Must(template.New("settings").Parse(pageTemplate)),
	}
}

// Catalog returns the catalog being rendered
func (r *Renderer) Catalog() *fields.Catalog {
	return r.catalog
}

// Expression returns the canonical dependency of a field, or nil
func (r *Renderer) Expression(f fields.Field) *dependency.Expression {
	return r.normalizer.For(f.ID, f.Dependency)
}

// DisplayValue resolves what a field shows: the stored value when
// non-empty, else the declared default
func DisplayValue(f fields.Field, blob settings.Blob) string {
	return blob.Value(f.ID, f.Default)
}

// Lookup resolves field values against blob, falling back to catalog
// defaults
func (r *Renderer) Lookup(blob settings.Blob) dependency.Lookup {
	return func(id string) string {
		return blob.Value(id, r.catalog.Default(id))
	}
}

// Visible reports whether a field is shown for the stored values
func (r *Renderer) Visible(f fields.Field, blob settings.Blob) bool {
	return dependency.Evaluate(r.Expression(f), r.Lookup(blob))
}

// Truthy reports whether a stored value checks a toggle. Numeric values
// count when they equal 1.
func Truthy(v string) bool {
	if settings.ParseBool(v) {
		return true
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return int(n) == 1
	}
	return false
}

type fieldView struct {
	Field       fields.Field
	Name        string
	Current     string
	Checked     bool
	Visible     bool
	Config      string
	Single      *dependency.Condition
	ActiveColor string
	Min         string
	Max         string
	Step        string
	Description template.HTML
}

func (r *Renderer) view(f fields.Field, current string, visible bool) (fieldView, error) {
	if current == "" {
		current = f.Default
	}
	v := fieldView{
		Field:       f,
		Name:        InputPrefix + f.ID,
		Current:     current,
		Visible:     visible,
		Description: template.HTML(f.Description),
	}

	if f.Type.IsToggle() {
		v.Checked = Truthy(current)
		v.ActiveColor = "peer-checked:bg-emerald-400"
		if f.Type == fields.TypeSwitch {
			v.ActiveColor = "peer-checked:bg-sky-400"
		}
	}

	if f.Type == fields.TypeNumber && f.Bounds != nil {
		v.Min = fields.FormatNumber(f.Bounds.Min)
		v.Max = fields.FormatNumber(f.Bounds.Max)
		v.Step = fields.FormatNumber(f.Bounds.Step)
	}

	if expr := r.Expression(f); expr != nil {
		data, err := json.Marshal(expr)
		if err != nil {
			return v, fmt.Errorf("failed to encode dependency of %s: %w", f.ID, err)
		}
		v.Config = string(data)
		if len(expr.Conditions) == 1 {
			c := expr.Conditions[0]
			v.Single = &c
		}
	}

	return v, nil
}

// RenderField renders one settings row. An empty current value shows
// the field's default.
func (r *Renderer) RenderField(f fields.Field, current string, visible bool) (template.HTML, error) {
	if f.ID == "" {
		return "", nil
	}

	v, err := r.view(f, current, visible)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, "field", v); err != nil {
		return "", fmt.Errorf("failed to render field %s: %w", f.ID, err)
	}
	return template.HTML(b.String()), nil
}

// PageData configures the settings page
type PageData struct {
	Title     string
	Version   string
	Nonce     string
	SaveURL   string
	StaticURL string
	Settings  settings.Blob
}

type sectionView struct {
	ID     string
	Title  string
	Icon   string
	Fields []fieldView
	Active bool
}

type pageView struct {
	PageData
	Sections []sectionView
}

// RenderPage writes the full settings screen
func (r *Renderer) RenderPage(w io.Writer, data PageData) error {
	page := pageView{PageData: data}
	blob := data.Settings
	if blob == nil {
		blob = settings.Blob{}
	}

	for i, s := range r.catalog.Sections() {
		sv := sectionView{ID: s.ID, Title: s.Title, Icon: s.Icon, Active: i == 0}
		for _, f := range s.Fields {
			if f.ID == "" {
				continue
			}
			v, err := r.view(f, DisplayValue(f, blob), r.Visible(f, blob))
			if err != nil {
				return err
			}
			sv.Fields = append(sv.Fields, v)
		}
		page.Sections = append(page.Sections, sv)
	}

	if err := r.tmpl.ExecuteTemplate(w, "page", page); err != nil {
		return fmt.Errorf("failed to render settings page: %w", err)
	}
	return nil
}
