package registration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/logging"
)

var (
	ErrStepOutOfRange   = errors.New("registration: step out of range")
	ErrNotAtSummary     = errors.New("registration: submit is only allowed on the summary step")
	ErrSubmitInProgress = errors.New("registration: a submission is already in progress")
	ErrInvalidSubType   = errors.New("registration: invalid account category")
	ErrValidation       = errors.New("registration: form has errors")
)

// MsgFixErrors is the top-level message while a step has errors.
const MsgFixErrors = "Veuillez corriger les champs indiqués."

// Registrar sends the registration payload.
type Registrar interface {
	Register(ctx context.Context, payload *apiclient.Payload) (*apiclient.AuthResponse, error)
}

// Controller owns the wizard state. It is safe for concurrent use; an
// in-flight submission and UI events never interleave on the same fields.
type Controller struct {
	registrar Registrar
	logger    logging.Logger

	mu         sync.Mutex
	role       RoleSelection
	steps      []StepDescriptor
	current    int
	data       FormData
	errors     Errors
	topError   string
	submitting bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a wizard with no role chosen.
func NewController(registrar Registrar, opts ...Option) *Controller {
	c := &Controller{registrar: registrar, logger: logging.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	c.resetLocked()
	return c
}

func (c *Controller) resetLocked() {
	c.role = RoleSelection{}
	c.steps = VisibleSteps(c.role)
	c.current = 0
	c.data = FormData{}
	c.errors = Errors{}
	c.topError = ""
}

// Reset returns the wizard to its initial state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// SelectRole switches the account type and category. Role-derived fields
// and acceptance flags are reset; every other value is kept.
func (c *Controller) SelectRole(role RoleSelection) error {
	if !role.validSubType() {
		return fmt.Errorf("%w: %q for %q", ErrInvalidSubType, role.SubType, role.AccountType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	at, known := ParseAccountType(role.AccountType)
	if known {
		role.AccountType = string(at)
	}
	c.role = role

	for _, f := range roleFields {
		delete(c.data, f)
		delete(c.errors, f)
	}
	if c.data.String("boutique_type") != "" && c.role.Type() != AccountMerchant {
		// boutique_type doubles as the merchant category.
		delete(c.data, "boutique_type")
	}
	c.data["accepted_terms"] = false
	c.data["accepted_contract"] = false
	delete(c.errors, "accepted_terms")
	delete(c.errors, "accepted_contract")

	if role.AccountType != "" {
		c.data["account_type"] = role.AccountType
		c.data["role"] = BackendRole(at)
	}
	if f := SubTypeField(at); f != "" && role.SubType != "" {
		c.data[f] = role.SubType
	}
	if at == AccountMerchant {
		c.data["merchant_type"] = MerchantType
	}

	c.steps = VisibleSteps(c.role)
	c.current = min(c.current, len(c.steps)-1)
	c.topError = ""
	return nil
}

// GoNext validates the current step and advances when it is valid.
func (c *Controller) GoNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := c.steps[c.current]
	errs := ValidateStep(step, c.role, c.data)
	for _, f := range step.Fields {
		delete(c.errors, f)
	}
	if len(errs) > 0 {
		maps.Copy(c.errors, errs)
		c.topError = MsgFixErrors
		return false
	}

	c.topError = ""
	c.current = min(c.current+1, len(c.steps)-1)
	return true
}

// GoBack moves to the previous step without validating.
func (c *Controller) GoBack() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = max(c.current-1, 0)
	c.topError = ""
}

// GoToStep jumps to step i without validating.
func (c *Controller) GoToStep(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.steps) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrStepOutOfRange, i, len(c.steps))
	}
	c.current = i
	return nil
}

// SetField stores a value. A live error on the field is cleared once the
// new value passes the field's own checks.
func (c *Controller) SetField(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == nil {
		delete(c.data, name)
	} else {
		c.data[name] = value
	}

	if _, ok := c.errors[name]; ok {
		required := isRequired(c.steps, c.role, c.data, name)
		if msg := ValidateField(name, required, c.data); msg == "" {
			delete(c.errors, name)
		} else {
			c.errors[name] = msg
		}
	}

	if name == "password" {
		if _, ok := c.errors["password2"]; ok {
			if ValidateField("password2", true, c.data) == "" {
				delete(c.errors, "password2")
			}
		}
	}
	if len(c.errors) == 0 {
		c.topError = ""
	}
}

// Submit validates every visible step and sends the registration. It is
// only allowed on the summary step and never retries. On success the
// wizard is reset.
func (c *Controller) Submit(ctx context.Context) (*apiclient.AuthResponse, error) {
	c.mu.Lock()
	if c.current != len(c.steps)-1 {
		c.mu.Unlock()
		return nil, ErrNotAtSummary
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if idx, errs := firstInvalid(c.steps, c.role, c.data); idx >= 0 {
		maps.Copy(c.errors, errs)
		c.topError = MsgFixErrors
		c.current = idx
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: step %s", ErrValidation, c.steps[idx].ID)
	}

	c.submitting = true
	c.topError = ""
	payload := BuildPayload(c.data, c.role)
	role := c.role
	c.mu.Unlock()

	log := c.logger.With(logging.String("account_type", role.AccountType), logging.String("sub_type", role.SubType))
	log.Info("submitting registration", logging.Bool("multipart", payload.Multipart()))

	resp, err := c.registrar.Register(ctx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if err != nil {
		log.Warn("registration rejected", logging.Err(err))
		c.applyAPIError(err)
		return nil, err
	}

	log.Info("registration accepted")
	c.resetLocked()
	return resp, nil
}

// apiFieldNames maps payload keys back to the form fields they came from.
var apiFieldNames = map[string]string{
	"confirm_password": "password2",
}

// applyAPIError merges field errors from the API and jumps to the first
// step holding one. Errors on fields no visible step owns join the banner.
func (c *Controller) applyAPIError(err error) {
	c.topError = apiclient.Message(err)

	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return
	}

	first := -1
	var unowned []string
	for field, msg := range apiErr.FieldErrors() {
		if name, ok := apiFieldNames[field]; ok {
			field = name
		}
		idx := OwningStep(c.steps, field)
		if idx < 0 {
			if msg != c.topError {
				unowned = append(unowned, msg)
			}
			continue
		}
		c.errors[field] = msg
		if first < 0 || idx < first {
			first = idx
		}
	}
	if len(unowned) > 0 {
		sort.Strings(unowned)
		c.topError = strings.Join(append([]string{c.topError}, unowned...), " ")
	}
	if first >= 0 {
		c.current = first
	}
}

// Current returns the current step index.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CurrentStep returns the current step descriptor.
func (c *Controller) CurrentStep() StepDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps[c.current]
}

// Steps returns the visible steps.
func (c *Controller) Steps() []StepDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StepDescriptor(nil), c.steps...)
}

// Role returns the current role selection.
func (c *Controller) Role() RoleSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Data returns a copy of the form data.
func (c *Controller) Data() FormData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Errors returns a copy of the live field errors.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errors)
}

// TopError returns the banner message, or "".
func (c *Controller) TopError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topError
}

// Submitting reports whether a submission is in flight.
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// AtSummary reports whether the current step is the last one.
func (c *Controller) AtSummary() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == len(c.steps)-1
}
