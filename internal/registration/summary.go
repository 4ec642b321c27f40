package registration

import (
	"fmt"
	"strings"
	"time"

	"github.com/seasky/seasky-web/pkg/forms"
	"github.com/seasky/seasky-web/pkg/i18n"
)

// SummaryRow is one reviewed value.
type SummaryRow struct {
	Field string
	Label string
	Value string
}

// SummarySection groups rows. EditStep is the visible index of the step
// that edits the section, or -1 when no visible step edits its fields.
type SummarySection struct {
	Key      string
	Title    string
	Rows     []SummaryRow
	EditStep int
}

// Editable reports whether the section links back to a step.
func (s SummarySection) Editable() bool {
	return s.EditStep >= 0
}

type sectionDef struct {
	key    string
	owner  StepID
	fields []string
}

var summarySections = []sectionDef{
	{key: "personal", owner: StepPersonal, fields: []string{"full_name", "phone", "email", "gender", "date_of_birth", "nationality"}},
	{key: "identity", owner: StepIdentity, fields: []string{"id_type", "id_number", "id_issue_date", "id_expiry_date", "id_no_expiry"}},
	{key: "address", owner: StepAddress, fields: []string{"address_line", "province", "commune", "colline_or_quartier"}},
	{key: "preferences", owner: StepAddress, fields: []string{"client_type", "preferred_delivery_time", "delivery_instructions"}},
	{key: "account", owner: StepCredentials, fields: []string{"username", "accepted_terms"}},
}

// identityDocuments are aggregated into one row of the identity section.
var identityDocuments = []string{"id_front_image", "id_back_image", "passport_photo", "proof_of_address"}

// Summarize builds the review sections for data. It never mutates state.
func Summarize(data FormData, steps []StepDescriptor, tr *i18n.Translator) []SummarySection {
	if tr == nil {
		tr = i18n.MustDefault(i18n.DefaultLocale)
	}

	sections := make([]SummarySection, 0, len(summarySections))
	for _, def := range summarySections {
		sec := SummarySection{
			Key:      def.key,
			Title:    tr.T("summary.sections." + def.key),
			EditStep: editStep(steps, def),
		}
		for _, field := range def.fields {
			sec.Rows = append(sec.Rows, SummaryRow{
				Field: field,
				Label: Label(field),
				Value: FormatValue(field, data[field], tr),
			})
		}
		if def.key == "identity" {
			sec.Rows = append(sec.Rows, SummaryRow{
				Field: "documents",
				Label: tr.T("summary.documents"),
				Value: documentsValue(data, tr),
			})
		}
		sections = append(sections, sec)
	}
	return sections
}

// editStep prefers the section's own step. Roles without it may still
// edit the fields elsewhere, like drivers entering their name on the
// delivery step.
func editStep(steps []StepDescriptor, def sectionDef) int {
	if i := StepIndex(steps, def.owner); i >= 0 {
		return i
	}
	for _, field := range def.fields {
		if i := OwningStep(steps, field); i >= 0 {
			return i
		}
	}
	return -1
}

func documentsValue(data FormData, tr *i18n.Translator) string {
	var names []string
	for _, f := range identityDocuments {
		if doc := data.File(f); doc != nil {
			names = append(names, doc.FileName)
		}
	}
	if len(names) == 0 {
		return tr.T("summary.empty")
	}
	return strings.Join(names, ", ")
}

// FormatValue renders a value for review: yes/no for booleans, dd/mm/yyyy
// for dates, option labels for choices and file names for uploads.
func FormatValue(field string, value any, tr *i18n.Translator) string {
	if tr == nil {
		tr = i18n.MustDefault(i18n.DefaultLocale)
	}

	switch v := value.(type) {
	case bool:
		if v {
			return tr.T("summary.yes")
		}
		return tr.T("summary.no")
	}

	if forms.IsEmpty(value) {
		return tr.T("summary.empty")
	}

	f, known := catalog[field]
	switch v := value.(type) {
	case string:
		if strings.Contains(field, "date") {
			if t, err := time.Parse(DateLayout, v); err == nil {
				return t.Format("02/01/2006")
			}
		}
		if known && len(f.Options) > 0 {
			return f.OptionLabel(v)
		}
		return v
	case []string:
		if known {
			labels := make([]string, len(v))
			for i, s := range v {
				labels[i] = f.OptionLabel(s)
			}
			return strings.Join(labels, ", ")
		}
		return strings.Join(v, ", ")
	}

	if doc := (FormData{field: value}).File(field); doc != nil {
		return doc.FileName
	}
	return fmt.Sprint(value)
}
