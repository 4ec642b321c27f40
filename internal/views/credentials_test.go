package views

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/internal/credentials"
	"github.com/seasky/seasky-web/pkg/core"
	lvtest "github.com/seasky/seasky-web/pkg/testing"
)

var amina = credentials.Credentials{
	Username:    "amina_nd",
	Phone:       "+25761234567",
	Role:        "client",
	AccountType: "client",
	Password:    "Lait2026x",
}

// escaped renders s the way the page templates do. html/template escapes
// "+" in text, unlike template.HTMLEscapeString.
func escaped(t *testing.T, s string) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, template.Must(template.New("").Parse("{{.}}")).Execute(&b, s))
	return b.String()
}

func TestCredentialsShownOnce(t *testing.T) {
	vault := credentials.NewVault(newStore(t), time.Minute)
	require.NoError(t, vault.Put(context.Background(), "sess-1", amina))

	v := NewCredentialsView(CredentialsDeps{Vault: vault})
	lv := lvtest.Mount(t, v, lvtest.WithSession(session))
	lv.Assert().HasElement("div", `role="dialog"`).HasText("amina_nd").
		HasText(escaped(t, credentials.DefaultLoginHint)).NoText(credentials.DefaultLoginHint)

	again := NewCredentialsView(CredentialsDeps{Vault: vault})
	lvtest.Mount(t, again, lvtest.WithSession(session)).Assert().NoText("amina_nd").HasClass("empty")
}

func TestCredentialsCopyThroughBrowser(t *testing.T) {
	v := NewCredentialsView(CredentialsDeps{})
	lv := lvtest.Mount(t, v)
	v.Show(amina)

	lv.MustEvent("copy", nil)
	pushed := lv.Transport().Pushed("clipboard")
	require.Len(t, pushed, 1)
	text, _ := pushed[0]["text"].(string)
	assert.True(t, strings.HasPrefix(text, "IDENTIFIANTS DE CONNEXION\n"), text)
	assert.Contains(t, text, "Mot de passe: Lait2026x")
	lv.Assert().HasText(credentials.NoticeCopied).HasClass("ok")

	lv.MustEvent("copy_failed", map[string]any{"reason": "NotAllowedError"})
	lv.Assert().HasText(credentials.NoticeFailed).HasClass("failed")

	lv.Transport().SetError(errors.New("gone"))
	lv.MustEvent("copy", nil)
	lv.Assert().HasText(credentials.NoticeFailed)

	lv.MustEvent("close", nil)
	lv.Assert().NoText("amina_nd")
	lv.MustEvent("copy", nil)
	assert.ErrorIs(t, lv.Event("print", nil), ErrUnknownEvent)
}

func TestCredentialsCopyWithoutBrowser(t *testing.T) {
	var copied string
	copier := credentials.NewCopier(credentials.WithClipboard(credentials.ClipboardFunc(func(text string) error {
		copied = text
		return nil
	})))
	v := NewCredentialsView(CredentialsDeps{Copier: copier})
	ctx := context.Background()
	require.NoError(t, v.Mount(ctx, core.Params{}, core.Session{}))
	v.Show(amina)

	require.NoError(t, v.HandleEvent(ctx, "copy", map[string]any{}))
	assert.Equal(t, amina.Text(), copied)
}
