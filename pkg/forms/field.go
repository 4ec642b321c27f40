// Package forms describes form fields, their options and the validators
// that check submitted values.
package forms

// FieldType identifies the input widget used for a field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPassword FieldType = "password"
	FieldTel      FieldType = "tel"
	FieldDate     FieldType = "date"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldMultiple FieldType = "multiple"
	FieldFile     FieldType = "file"
)

// Field describes one form field.
type Field struct {
	Name        string
	Type        FieldType
	Label       string
	Placeholder string
	Help        string

	// Options are the choices for select and multiple fields.
	Options []Option

	// Accept lists accepted MIME types for file fields.
	Accept []string

	// Validators run whenever the field is validated, in order.
	Validators []Validator
}

// Option is one choice of a select or multiple field.
type Option struct {
	Value string
	Label string
}

// FieldOption configures a field.
type FieldOption func(*Field)

// NewField creates a field.
func NewField(name string, fieldType FieldType, label string, opts ...FieldOption) Field {
	f := Field{Name: name, Type: fieldType, Label: label}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithPlaceholder sets the placeholder text.
func WithPlaceholder(placeholder string) FieldOption {
	return func(f *Field) {
		f.Placeholder = placeholder
	}
}

// WithHelp sets the help text.
func WithHelp(help string) FieldOption {
	return func(f *Field) {
		f.Help = help
	}
}

// WithOptions sets the select options and adds a matching OneOf validator.
func WithOptions(options ...Option) FieldOption {
	return func(f *Field) {
		f.Options = options
		if f.Type == FieldSelect {
			f.Validators = append(f.Validators, OneOf(options))
		}
	}
}

// WithAccept restricts file fields to MIME types.
func WithAccept(types ...string) FieldOption {
	return func(f *Field) {
		f.Accept = types
	}
}

// WithValidator appends validators.
func WithValidator(vs ...Validator) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, vs...)
	}
}

// Validate runs the field's validators against value.
func (f Field) Validate(value any) string {
	return Check(value, f.Validators...)
}

// OptionLabel returns the label of the option with value v, or v itself.
func (f Field) OptionLabel(v string) string {
	for _, o := range f.Options {
		if o.Value == v {
			return o.Label
		}
	}
	return v
}
