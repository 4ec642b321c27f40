// Package views holds the live components of the web frontend.
package views

import (
	"fmt"
	"html/template"
	"io"
	"slices"
	"strings"

	"github.com/seasky/seasky-web/internal/registration"
	"github.com/seasky/seasky-web/pkg/forms"
	"github.com/seasky/seasky-web/pkg/uploads"
)

// FieldView is one field bound to the shared form state.
type FieldView struct {
	forms.Field

	Value    any
	Required bool
	Error    string

	// Preview is an image data URL once decoding finished.
	Preview string
	// Previewing is set while a decode is in flight.
	Previewing bool
}

// NewFieldView binds the catalog field name to data and errs. Unknown
// names render as plain text inputs.
func NewFieldView(name string, required bool, data registration.FormData, errs registration.Errors) FieldView {
	f, ok := registration.Field(name)
	if !ok {
		f = forms.NewField(name, forms.FieldText, name)
	}
	return FieldView{
		Field:    f,
		Value:    data[name],
		Required: required,
		Error:    errs[name],
	}
}

// Kind selects the widget.
func (f FieldView) Kind() string {
	switch f.Type {
	case forms.FieldSelect, forms.FieldCheckbox, forms.FieldMultiple, forms.FieldFile, forms.FieldTextarea:
		return string(f.Type)
	}
	return "input"
}

// InputType is the type attribute of an input widget.
func (f FieldView) InputType() string {
	if f.Type == "" {
		return string(forms.FieldText)
	}
	return string(f.Type)
}

// Text is the value echoed into the widget. Passwords are never echoed.
func (f FieldView) Text() string {
	if f.Type == forms.FieldPassword {
		return ""
	}
	switch v := f.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	}
	return fmt.Sprint(f.Value)
}

// Checked reports a ticked checkbox.
func (f FieldView) Checked() bool {
	b, _ := f.Value.(bool)
	return b
}

// Selected reports whether opt is the value, or one of the values.
func (f FieldView) Selected(opt string) bool {
	if f.Type == forms.FieldMultiple {
		return slices.Contains(registration.FormData{f.Name: f.Value}.Strings(f.Name), opt)
	}
	return f.Text() == opt
}

// Document returns the uploaded file, or nil.
func (f FieldView) Document() *uploads.Document {
	return registration.FormData{f.Name: f.Value}.File(f.Name)
}

// AcceptAttr is the accept attribute of a file input.
func (f FieldView) AcceptAttr() string {
	return strings.Join(f.Accept, ",")
}

// Classes are the CSS classes of the wrapper.
func (f FieldView) Classes() string {
	classes := []string{"field", "field-" + f.Kind()}
	if f.Error != "" {
		classes = append(classes, "error")
	}
	return strings.Join(classes, " ")
}

// FormatSize renders a byte count the way file pickers do.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f Mo", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f Ko", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d o", n)
}

var templateFuncs = template.FuncMap{
	"size": FormatSize,
	// safeURL admits the data URLs produced by the previewer.
	"safeURL": func(s string) template.URL {
		if strings.HasPrefix(s, "data:image/") {
			return template.URL(s)
		}
		return ""
	},
}

const fieldTemplate = `
{{define "field"}}
<div class="{{.Classes}}" id="field-{{.Name}}">
{{if eq .Kind "checkbox"}}
  <label class="checkbox">
    <input type="checkbox" name="{{.Name}}"{{if .Checked}} checked{{end}} lv-click="toggle" lv-value-field="{{.Name}}">
    {{.Label}}{{if .Required}} <span class="required">*</span>{{end}}
  </label>
{{else}}
  <label for="input-{{.Name}}">{{.Label}}{{if .Required}} <span class="required">*</span>{{end}}</label>
  {{if eq .Kind "select"}}
  <select id="input-{{.Name}}" name="{{.Name}}" lv-change="set_field" lv-value-field="{{.Name}}">
    <option value="">Sélectionner…</option>
    {{$f := .}}{{range .Options}}<option value="{{.Value}}"{{if $f.Selected .Value}} selected{{end}}>{{.Label}}</option>{{end}}
  </select>
  {{else if eq .Kind "multiple"}}
  <div class="choices" id="input-{{.Name}}">
    {{$f := .}}{{range .Options}}
    <label class="choice">
      <input type="checkbox" value="{{.Value}}"{{if $f.Selected .Value}} checked{{end}} lv-click="toggle" lv-value-field="{{$f.Name}}" lv-value-value="{{.Value}}">
      {{.Label}}
    </label>
    {{end}}
  </div>
  {{else if eq .Kind "textarea"}}
  <textarea id="input-{{.Name}}" name="{{.Name}}" placeholder="{{.Placeholder}}" lv-change="set_field" lv-value-field="{{.Name}}">{{.Text}}</textarea>
  {{else if eq .Kind "file"}}
  <input type="file" id="input-{{.Name}}" name="{{.Name}}" accept="{{.AcceptAttr}}" lv-upload="{{.Name}}">
  {{with .Document}}
  <div class="file-info">
    <span class="file-name">{{.FileName}}</span> <span class="file-size">({{size .Size}})</span>
    <button type="button" class="link" lv-click="upload" lv-value-field="{{$.Name}}" lv-value-id="">Retirer</button>
  </div>
  {{end}}
  {{if .Preview}}<img class="preview" alt="{{.Label}}" src="{{safeURL .Preview}}">{{else if .Previewing}}<span class="preview-pending">Aperçu…</span>{{end}}
  {{else}}
  <input type="{{.InputType}}" id="input-{{.Name}}" name="{{.Name}}" value="{{.Text}}" placeholder="{{.Placeholder}}"{{if eq .InputType "password"}} autocomplete="new-password"{{end}} lv-change="set_field" lv-value-field="{{.Name}}">
  {{end}}
{{end}}
{{if .Help}}<small class="help">{{.Help}}</small>{{end}}
{{if .Error}}<p class="error-text" role="alert">{{.Error}}</p>{{end}}
</div>
{{end}}
`

// RenderField writes one field.
func RenderField(w io.Writer, f FieldView) error {
	return pageTemplates.ExecuteTemplate(w, "field", f)
}
