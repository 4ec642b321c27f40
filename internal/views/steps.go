package views

import (
	"io"
	"slices"

	"github.com/seasky/seasky-web/internal/registration"
	"github.com/seasky/seasky-web/pkg/i18n"
)

// StepView is one wizard section ready to render. Steps keep no state of
// their own; everything comes from the controller's data and errors.
type StepView struct {
	Step      registration.StepDescriptor
	Title     string
	Fields    []FieldView
	Summary   []registration.SummarySection
	EditLabel string
}

// PreviewState reports the preview of an upload field.
type PreviewState interface {
	Preview(field string) (url string, pending bool)
}

// BuildStep binds step to the form state.
func BuildStep(step registration.StepDescriptor, steps []registration.StepDescriptor, role registration.RoleSelection,
	data registration.FormData, errs registration.Errors, previews PreviewState, tr *i18n.Translator) StepView {
	if tr == nil {
		tr = i18n.MustDefault(i18n.DefaultLocale)
	}

	required := step.RequiredFields(role, data)
	sv := StepView{
		Step:      step,
		Title:     tr.T(step.Label),
		EditLabel: tr.T("wizard.edit"),
	}

	for _, name := range step.Fields {
		// The expiry date is pointless once the document never expires.
		if name == "id_expiry_date" && data.Bool("id_no_expiry") {
			continue
		}
		fv := NewFieldView(name, slices.Contains(required, name), data, errs)
		if previews != nil && registration.IsFileField(name) {
			fv.Preview, fv.Previewing = previews.Preview(name)
		}
		sv.Fields = append(sv.Fields, fv)
	}

	if step.ID == registration.StepSummary {
		sv.Summary = registration.Summarize(data, steps, tr)
	}
	return sv
}

const stepTemplate = `
{{define "step"}}
<section class="step step-{{.Step.ID}}" id="step-{{.Step.Index}}">
  <h2>{{.Title}}</h2>
  {{range .Summary}}
  <div class="summary-section" id="summary-{{.Key}}">
    <h3>{{.Title}}{{if .Editable}} <button type="button" class="link" lv-click="goto" lv-value-step="{{.EditStep}}">{{$.EditLabel}}</button>{{end}}</h3>
    <dl>
      {{range .Rows}}<dt>{{.Label}}</dt><dd data-field="{{.Field}}">{{.Value}}</dd>{{end}}
    </dl>
  </div>
  {{end}}
  {{range .Fields}}{{template "field" .}}{{end}}
</section>
{{end}}
`

// RenderStep writes one step.
func RenderStep(w io.Writer, sv StepView) error {
	return pageTemplates.ExecuteTemplate(w, "step", sv)
}
