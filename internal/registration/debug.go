package registration

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/seasky/seasky-web/pkg/forms"
	"github.com/seasky/seasky-web/pkg/uploads"
)

// ChecklistItem is one required field of the current step.
type ChecklistItem struct {
	Field  string
	Filled bool
	Error  string
}

// DebugEntry is one form value rendered for display.
type DebugEntry struct {
	Key   string
	Value string
}

// DebugReport is the development overlay's view of the wizard.
type DebugReport struct {
	StepIndex   int
	StepCount   int
	StepID      StepID
	StepLabel   string
	AccountType string
	Category    string
	Checklist   []ChecklistItem
	Errors      Errors
	TopError    string
	State       []DebugEntry

	// Stale lists populated fields that no visible step renders. They are
	// still submitted.
	Stale []string
}

// Inspect builds the debug report for c.
func Inspect(c *Controller) DebugReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := c.steps[c.current]
	r := DebugReport{
		StepIndex:   c.current,
		StepCount:   len(c.steps),
		StepID:      step.ID,
		StepLabel:   step.Label,
		AccountType: c.role.AccountType,
		Category:    c.role.SubType,
		Errors:      Errors{},
		TopError:    c.topError,
	}

	for _, f := range step.RequiredFields(c.role, c.data) {
		r.Checklist = append(r.Checklist, ChecklistItem{
			Field:  f,
			Filled: !forms.IsEmpty(c.data[f]),
			Error:  c.errors[f],
		})
	}
	for k, v := range c.errors {
		r.Errors[k] = v
	}

	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		r.State = append(r.State, DebugEntry{Key: k, Value: debugValue(k, c.data[k])})

		if forms.IsEmpty(c.data[k]) || slices.Contains(roleFields, k) {
			continue
		}
		if OwningStep(c.steps, k) < 0 && !(k == "boutique_type" && c.role.Type() == AccountMerchant) {
			r.Stale = append(r.Stale, k)
		}
	}
	return r
}

func debugValue(key string, v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *uploads.Document:
		if val == nil {
			return "null"
		}
		return fmt.Sprintf("File: %s (%d bytes)", val.FileName, val.Size)
	case string:
		if strings.Contains(key, "password") && val != "" {
			return strings.Repeat("*", len([]rune(val)))
		}
		return fmt.Sprintf("%q", val)
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	}
	return fmt.Sprint(v)
}
