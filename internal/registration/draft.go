package registration

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/seasky/seasky-web/pkg/state"
)

// Draft is the resumable part of the wizard. Uploaded files are not kept.
type Draft struct {
	Role    RoleSelection     `msgpack:"role"`
	Current int               `msgpack:"current"`
	Data    map[string]any    `msgpack:"data"`
	Errors  map[string]string `msgpack:"errors,omitempty"`
}

// Snapshot captures the wizard state without files.
func (c *Controller) Snapshot() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		if IsFileField(k) {
			continue
		}
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		data[k] = v
	}
	return Draft{
		Role:    c.role,
		Current: c.current,
		Data:    data,
		Errors:  maps.Clone(c.errors),
	}
}

// Restore replaces the wizard state with d. The step index is clamped to
// the steps of the restored role.
func (c *Controller) Restore(d Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.role = d.Role
	c.steps = VisibleSteps(c.role)
	c.current = min(max(d.Current, 0), len(c.steps)-1)

	c.data = FormData{}
	for k, v := range d.Data {
		if IsFileField(k) {
			continue
		}
		// Lists decode as []any.
		if list, ok := v.([]any); ok {
			v = FormData{k: list}.Strings(k)
		}
		c.data[k] = v
	}
	c.errors = Errors{}
	for k, v := range d.Errors {
		if !IsFileField(k) {
			c.errors[k] = v
		}
	}
	c.topError = ""
	c.submitting = false
}

// Drafts persists wizard drafts per browser session.
type Drafts struct {
	bucket *state.Bucket[Draft]
}

// NewDrafts keeps drafts in store for ttl.
func NewDrafts(store state.Store, ttl time.Duration) *Drafts {
	return &Drafts{bucket: state.NewBucket[Draft](store, "draft:", ttl)}
}

// Save stores c's state under sessionID.
func (d *Drafts) Save(ctx context.Context, sessionID string, c *Controller) error {
	return d.bucket.Save(ctx, sessionID, c.Snapshot())
}

// Resume restores the draft of sessionID into c. It reports false when
// there is none.
func (d *Drafts) Resume(ctx context.Context, sessionID string, c *Controller) (bool, error) {
	draft, err := d.bucket.Load(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.Restore(draft)
	return true, nil
}

// Discard deletes the draft of sessionID.
func (d *Drafts) Discard(ctx context.Context, sessionID string) error {
	return d.bucket.Delete(ctx, sessionID)
}
