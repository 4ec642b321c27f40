// Package credentials formats freshly issued login credentials and copies
// them to a clipboard.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/seasky/seasky-web/pkg/logging"
)

// DefaultLoginHint ends the copied text when no hint is given.
const DefaultLoginHint = "Connexion avec username OU téléphone + mot de passe"

// Notices shown after a copy attempt.
const (
	NoticeCopied = "Identifiants copiés"
	NoticeFailed = "Impossible de copier (permissions navigateur)."
)

// Credentials are shown once after an account is created.
type Credentials struct {
	Username    string `json:"username,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	Password    string `json:"password,omitempty"`
	LoginHint   string `json:"login_hint,omitempty"`
}

// Line is a label and its value.
type Line struct {
	Label string
	Value string
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Lines returns the displayed rows. Empty values read "-".
func (c Credentials) Lines() []Line {
	return []Line{
		{"Nom d'utilisateur", orDash(c.Username)},
		{"Téléphone", orDash(c.Phone)},
		{"Email", orDash(c.Email)},
		{"Rôle", orDash(c.Role)},
		{"Account type", orDash(c.AccountType)},
		{"Mot de passe", orDash(c.Password)},
	}
}

// Hint returns the login hint or DefaultLoginHint.
func (c Credentials) Hint() string {
	if c.LoginHint == "" {
		return DefaultLoginHint
	}
	return c.LoginHint
}

// Text is the plaintext block put on the clipboard.
func (c Credentials) Text() string {
	var b strings.Builder
	b.WriteString("IDENTIFIANTS DE CONNEXION\n")
	fmt.Fprintf(&b, "Username: %s\n", orDash(c.Username))
	fmt.Fprintf(&b, "Téléphone: %s\n", orDash(c.Phone))
	fmt.Fprintf(&b, "Email: %s\n", orDash(c.Email))
	fmt.Fprintf(&b, "Rôle: %s\n", orDash(c.Role))
	fmt.Fprintf(&b, "Account type: %s\n", orDash(c.AccountType))
	fmt.Fprintf(&b, "Mot de passe: %s\n\n", orDash(c.Password))
	b.WriteString(c.Hint())
	return b.String()
}

var errUnsupported = errors.New("credentials: no clipboard utility available")

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the host clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errUnsupported
	}
	return clipboard.WriteAll(text)
}

// ClipboardFunc adapts a function to Clipboard.
type ClipboardFunc func(text string) error

func (f ClipboardFunc) WriteAll(text string) error { return f(text) }

// Notice is the non-blocking feedback of a copy.
type Notice struct {
	OK      bool
	Message string
}

// Copier copies credentials and turns every failure into a notice.
type Copier struct {
	clipboard Clipboard
	logger    logging.Logger
}

// CopierOption configures a Copier.
type CopierOption func(*Copier)

// WithClipboard replaces the system clipboard.
func WithClipboard(cb Clipboard) CopierOption {
	return func(c *Copier) { c.clipboard = cb }
}

// WithLogger sets the logger for copy failures.
func WithLogger(l logging.Logger) CopierOption {
	return func(c *Copier) { c.logger = l }
}

// NewCopier returns a Copier writing to the system clipboard.
func NewCopier(opts ...CopierOption) *Copier {
	c := &Copier{clipboard: SystemClipboard{}, logger: logging.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy writes creds.Text() to the clipboard. It never fails: errors and
// panics become NoticeFailed.
func (c *Copier) Copy(creds Credentials) (n Notice) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("clipboard panic", logging.Any("panic", r))
			n = Notice{Message: NoticeFailed}
		}
	}()

	if err := c.clipboard.WriteAll(creds.Text()); err != nil {
		c.logger.Warn("clipboard copy failed", logging.Err(err), logging.String("username", creds.Username))
		return Notice{Message: NoticeFailed}
	}
	return Notice{OK: true, Message: NoticeCopied}
}
