package registration

import (
	"slices"

	"github.com/seasky/seasky-web/pkg/forms"
)

// MsgPasswordMismatch is shown when the confirmation differs.
const MsgPasswordMismatch = "Les mots de passe ne correspondent pas"

// ValidateStep checks the required fields of step and the validators of
// every field it renders. The result is empty when the step is valid.
func ValidateStep(step StepDescriptor, role RoleSelection, data FormData) Errors {
	errs := Errors{}
	required := step.RequiredFields(role, data)

	for _, name := range step.Fields {
		if msg := fieldMessage(name, slices.Contains(required, name), data); msg != "" {
			errs[name] = msg
		}
	}
	// Required fields the step does not render, such as a sub-type
	// chosen before the wizard, still block progress.
	for _, name := range required {
		if _, done := errs[name]; done || step.Owns(name) {
			continue
		}
		if msg := fieldMessage(name, true, data); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}

// ValidateField checks a single field the way ValidateStep would.
func ValidateField(name string, required bool, data FormData) string {
	return fieldMessage(name, required, data)
}

func fieldMessage(name string, required bool, data FormData) string {
	value := data[name]
	if forms.IsEmpty(value) {
		if required {
			return RequiredMessage(name)
		}
		return ""
	}
	if f, ok := catalog[name]; ok {
		if msg := f.Validate(value); msg != "" {
			return msg
		}
	}
	if name == "password2" && data.String("password2") != data.String("password") {
		return MsgPasswordMismatch
	}
	return ""
}

// firstInvalid validates steps in order and returns the index of the
// first failing step with its errors, or -1.
func firstInvalid(steps []StepDescriptor, role RoleSelection, data FormData) (int, Errors) {
	for _, s := range steps {
		if errs := ValidateStep(s, role, data); len(errs) > 0 {
			return s.Index, errs
		}
	}
	return -1, nil
}

// isRequired reports whether any visible step requires name.
func isRequired(steps []StepDescriptor, role RoleSelection, data FormData, name string) bool {
	for _, s := range steps {
		if slices.Contains(s.RequiredFields(role, data), name) {
			return true
		}
	}
	return false
}
