package credentials

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	c := Credentials{Username: "pdv_kamenge", Phone: "61234567", Role: "pdv", Password: "Tmp-9x2"}

	want := "IDENTIFIANTS DE CONNEXION\n" +
		"Username: pdv_kamenge\n" +
		"Téléphone: 61234567\n" +
		"Email: -\n" +
		"Rôle: pdv\n" +
		"Account type: -\n" +
		"Mot de passe: Tmp-9x2\n\n" +
		DefaultLoginHint
	assert.Equal(t, want, c.Text())

	c.LoginHint = "Connexion par téléphone"
	assert.True(t, strings.HasSuffix(c.Text(), "\n\nConnexion par téléphone"))
}

func TestLines(t *testing.T) {
	lines := Credentials{Email: "a@seasky.bi"}.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, Line{"Nom d'utilisateur", "-"}, lines[0])
	assert.Equal(t, Line{"Email", "a@seasky.bi"}, lines[2])
}

func TestCopy(t *testing.T) {
	var got string
	c := NewCopier(WithClipboard(ClipboardFunc(func(text string) error {
		got = text
		return nil
	})))

	n := c.Copy(Credentials{Username: "u"})
	assert.Equal(t, Notice{OK: true, Message: NoticeCopied}, n)
	assert.Contains(t, got, "Username: u")
}

func TestCopyFailureIsANotice(t *testing.T) {
	failing := NewCopier(WithClipboard(ClipboardFunc(func(string) error {
		return errors.New("denied")
	})))
	assert.Equal(t, Notice{Message: NoticeFailed}, failing.Copy(Credentials{}))

	panicking := NewCopier(WithClipboard(ClipboardFunc(func(string) error {
		panic("no display")
	})))
	assert.Equal(t, Notice{Message: NoticeFailed}, panicking.Copy(Credentials{}))
}
