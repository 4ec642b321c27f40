package views

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/seasky/seasky-web/internal/credentials"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
)

// CredentialsDeps are shared by every credentials dialog.
type CredentialsDeps struct {
	Vault *credentials.Vault
	// Copier is used when no browser is connected.
	Copier     *credentials.Copier
	Translator *i18n.Translator
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// CredentialsView is the dialog showing freshly created credentials once.
type CredentialsView struct {
	core.BaseComponent

	deps   CredentialsDeps
	tr     *i18n.Translator
	logger logging.Logger

	mu     sync.Mutex
	creds  credentials.Credentials
	found  bool
	notice credentials.Notice
}

// NewCredentialsView creates a credentials dialog.
func NewCredentialsView(deps CredentialsDeps) *CredentialsView {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger{}
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault(i18n.DefaultLocale)
	}
	if deps.Copier == nil {
		deps.Copier = credentials.NewCopier(credentials.WithLogger(deps.Logger))
	}
	return &CredentialsView{deps: deps, tr: deps.Translator, logger: deps.Logger}
}

func (v *CredentialsView) Name() string { return "credentials" }

func (v *CredentialsView) Title() string { return v.tr.T("credentials.title") }

func (v *CredentialsView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.logger = v.deps.Logger.With(logging.String("view", "credentials"))
	sid := session.GetString("session_id")
	if v.deps.Vault == nil || sid == "" {
		return nil
	}
	creds, ok, err := v.deps.Vault.Take(ctx, sid)
	if err != nil {
		v.logger.Warn("credentials lookup failed", logging.Err(err))
		return nil
	}
	v.mu.Lock()
	v.creds, v.found = creds, ok
	v.mu.Unlock()
	return nil
}

// Show replaces the displayed credentials.
func (v *CredentialsView) Show(creds credentials.Credentials) {
	v.mu.Lock()
	v.creds, v.found = creds, true
	v.notice = credentials.Notice{}
	v.mu.Unlock()
}

func (v *CredentialsView) Terminate(ctx context.Context, reason core.TerminateReason) error {
	return nil
}

func (v *CredentialsView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "copy":
		v.mu.Lock()
		creds, found := v.creds, v.found
		v.mu.Unlock()
		if !found {
			return nil
		}
		n := v.copier().Copy(creds)
		v.deps.Metrics.Copy(n.OK)
		v.mu.Lock()
		v.notice = n
		v.mu.Unlock()
	case "copy_failed":
		v.logger.Warn("browser clipboard refused", logging.String("reason", stringParam(payload, "reason")))
		v.mu.Lock()
		v.notice = credentials.Notice{Message: credentials.NoticeFailed}
		v.mu.Unlock()
	case "close":
		v.mu.Lock()
		v.found = false
		v.creds = credentials.Credentials{}
		v.notice = credentials.Notice{}
		v.mu.Unlock()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

// copier writes through the browser when one is connected. The browser
// reports a refused write with copy_failed.
func (v *CredentialsView) copier() *credentials.Copier {
	s := v.Socket()
	if s == nil {
		return v.deps.Copier
	}
	return credentials.NewCopier(
		credentials.WithLogger(v.logger),
		credentials.WithClipboard(credentials.ClipboardFunc(func(text string) error {
			return s.Push("clipboard", map[string]any{"text": text})
		})),
	)
}

func (v *CredentialsView) HandleInfo(ctx context.Context, msg any) error { return nil }

type credentialsPage struct {
	T        func(key string, args ...any) string
	Open     bool
	Lines    []credentials.Line
	Hint     string
	Notice   string
	NoticeOK bool
}

func (v *CredentialsView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		v.mu.Lock()
		p := credentialsPage{
			T:        v.tr.T,
			Open:     v.found,
			Notice:   v.notice.Message,
			NoticeOK: v.notice.OK,
		}
		if p.Open {
			p.Lines = v.creds.Lines()
			p.Hint = v.creds.Hint()
		}
		v.mu.Unlock()
		return pageTemplates.ExecuteTemplate(w, "credentials", p)
	})
}

const credentialsTemplate = `
{{define "credentials"}}
<div class="credentials" data-live-view="credentials">
  {{if .Open}}
  <div class="dialog" role="dialog" aria-labelledby="credentials-title">
    <h2 id="credentials-title">{{call .T "credentials.title"}}</h2>
    <dl>{{range .Lines}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>
    <p class="hint">{{.Hint}}</p>
    {{if .Notice}}<p class="notice {{if .NoticeOK}}ok{{else}}failed{{end}}" role="status">{{.Notice}}</p>{{end}}
    <button type="button" class="primary" lv-click="copy">{{call .T "credentials.copy"}}</button>
    <button type="button" lv-click="close">×</button>
  </div>
  {{else}}
  <p class="empty">-</p>
  {{end}}
</div>
{{end}}
`
