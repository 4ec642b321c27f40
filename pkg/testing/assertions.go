package testing

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// HTMLAssert checks rendered markup. It matches on text rather than
// parsing, which is enough for the server-rendered fragments under test.
type HTMLAssert struct {
	t    *testing.T
	html string
}

// NewHTMLAssert creates assertions over html.
func NewHTMLAssert(t *testing.T, html string) *HTMLAssert {
	return &HTMLAssert{t: t, html: html}
}

// String returns the markup under test.
func (ha *HTMLAssert) String() string {
	return ha.html
}

// HasText asserts that the markup contains text.
func (ha *HTMLAssert) HasText(text string) *HTMLAssert {
	ha.t.Helper()
	assert.Contains(ha.t, ha.html, text)
	return ha
}

// NoText asserts that the markup does not contain text.
func (ha *HTMLAssert) NoText(text string) *HTMLAssert {
	ha.t.Helper()
	assert.NotContains(ha.t, ha.html, text)
	return ha
}

// HasElement asserts that an element with tag and every attr exists.
func (ha *HTMLAssert) HasElement(tag string, attrs ...string) *HTMLAssert {
	ha.t.Helper()

	if !strings.Contains(ha.html, "<"+tag) {
		ha.t.Errorf("element <%s> not found in:\n%s", tag, ha.html)
		return ha
	}
	for _, attr := range attrs {
		assert.Contains(ha.t, ha.html, attr, "attribute of <%s>", tag)
	}
	return ha
}

// HasClass asserts that some element carries class.
func (ha *HTMLAssert) HasClass(class string) *HTMLAssert {
	ha.t.Helper()
	pattern := fmt.Sprintf(`class="([^"]*\s)?%s(\s[^"]*)?"`, regexp.QuoteMeta(class))
	assert.Regexp(ha.t, pattern, ha.html)
	return ha
}

// HasID asserts that an element with id exists.
func (ha *HTMLAssert) HasID(id string) *HTMLAssert {
	ha.t.Helper()
	assert.Contains(ha.t, ha.html, fmt.Sprintf(`id="%s"`, id))
	return ha
}

// Count returns how many times text occurs.
func (ha *HTMLAssert) Count(text string) int {
	return strings.Count(ha.html, text)
}
