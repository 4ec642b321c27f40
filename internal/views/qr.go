package views

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
)

// QRConfirmView scans a delivery QR code and confirms the delivery at the
// agent's point of sale.
type QRConfirmView struct {
	core.BaseComponent

	deps  AgentDeps
	tr    *i18n.Translator
	agent agentSession

	mu     sync.Mutex
	pdv    *apiclient.PDV
	raw    string
	scan   *apiclient.QRScanResult
	errMsg string
	notice string
}

// NewQRConfirmView creates a scan page.
func NewQRConfirmView(deps AgentDeps) *QRConfirmView {
	deps = deps.withDefaults()
	return &QRConfirmView{deps: deps, tr: deps.Translator, agent: agentSession{deps: deps}}
}

func (v *QRConfirmView) Name() string { return "qr" }

func (v *QRConfirmView) Title() string { return v.tr.T("qr.title") }

// Scanned returns the raw code and what the API resolved it to.
func (v *QRConfirmView) Scanned() (string, *apiclient.QRScanResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.raw, v.scan
}

func (v *QRConfirmView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.agent.mount(ctx, session, v.deps.Logger.With(logging.String("view", "qr")))
	if !v.agent.signedIn() {
		return nil
	}

	// Agents without an outlet confirm without pdv_id and let the API
	// resolve it.
	var pdv *apiclient.PDV
	err := v.agent.call(ctx, "my_pdv", func(ctx context.Context) error {
		var err error
		pdv, err = v.agent.api.MyPDV(ctx)
		return err
	})
	if err != nil && !apiclient.IsStatus(err, http.StatusNotFound) {
		v.setError(apiclient.Message(err))
	}
	v.mu.Lock()
	v.pdv = pdv
	v.mu.Unlock()

	if code := params.Get("code"); code != "" {
		v.scanCode(ctx, code)
	}
	return nil
}

func (v *QRConfirmView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "scan":
		v.scanCode(ctx, stringParam(payload, "value"))
	case "confirm":
		v.confirm(ctx, payload)
	case "reset":
		v.mu.Lock()
		v.raw, v.scan, v.errMsg = "", nil, ""
		v.notice = v.tr.T("qr.ready")
		v.mu.Unlock()
	case "logout":
		v.agent.logout(ctx, v.Socket())
		v.mu.Lock()
		v.pdv, v.raw, v.scan = nil, "", nil
		v.mu.Unlock()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

func (v *QRConfirmView) HandleInfo(ctx context.Context, msg any) error { return nil }

func (v *QRConfirmView) setError(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()
}

func (v *QRConfirmView) scanCode(ctx context.Context, raw string) {
	raw = strings.TrimSpace(raw)
	v.mu.Lock()
	v.raw, v.scan, v.errMsg, v.notice = raw, nil, "", ""
	v.mu.Unlock()
	if raw == "" {
		v.setError(v.tr.T("qr.empty"))
		return
	}
	if !v.agent.signedIn() {
		v.setError(v.tr.T("agent.login_required"))
		return
	}

	var res *apiclient.QRScanResult
	err := v.agent.call(ctx, "scan", func(ctx context.Context) error {
		var err error
		res, err = v.agent.api.ScanQR(ctx, raw)
		return err
	})
	if err != nil {
		v.setError(apiclient.Message(err))
		return
	}
	v.mu.Lock()
	v.scan = res
	v.mu.Unlock()
}

func (v *QRConfirmView) confirm(ctx context.Context, payload map[string]any) {
	v.mu.Lock()
	raw, scan, pdv := v.raw, v.scan, v.pdv
	v.mu.Unlock()
	if raw == "" || !v.agent.signedIn() {
		v.setError(v.tr.T("qr.empty"))
		return
	}
	liters, err := litersParam(payload, "liters")
	if err != nil {
		v.setError(v.tr.T("pdv.invalid_liters"))
		return
	}

	in := apiclient.DeliveryConfirmation{QRData: raw, QuantityLiters: liters}
	if scan != nil && scan.Token != nil {
		in.Code = scan.Token.Code
	}
	if pdv != nil {
		in.PDVID = pdv.ID
	}

	var resp map[string]any
	err = v.agent.call(ctx, "confirm_delivery", func(ctx context.Context) error {
		var err error
		resp, err = v.agent.api.ConfirmDeliveryFromScan(ctx, in)
		return err
	})
	if err != nil {
		v.setError(apiclient.Message(err))
		return
	}

	msg, _ := resp["message"].(string)
	if msg == "" {
		msg = v.tr.T("qr.confirmed")
	}
	v.mu.Lock()
	v.raw, v.scan, v.errMsg, v.notice = "", nil, "", msg
	v.mu.Unlock()
}

type qrPage struct {
	T        func(key string, args ...any) string
	SignedIn bool
	PDV      *apiclient.PDV
	Raw      string
	Scan     *apiclient.QRScanResult
	Subject  string
	Error    string
	Notice   string
}

func (v *QRConfirmView) page() qrPage {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := qrPage{
		T:        v.tr.T,
		SignedIn: v.agent.signedIn(),
		PDV:      v.pdv,
		Raw:      v.raw,
		Scan:     v.scan,
		Error:    v.errMsg,
		Notice:   v.notice,
	}
	if v.scan != nil && v.scan.Subject != nil {
		s := v.scan.Subject
		for _, name := range []string{s.FullName, s.Name, s.Username} {
			if name != "" {
				p.Subject = name
				break
			}
		}
	}
	return p
}

func (v *QRConfirmView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "qr", v.page())
	})
}

const qrTemplate = `
{{define "qr"}}
<div class="qr" data-live-view="qr">
  <h1>{{call .T "qr.title"}}</h1>
  {{if not .SignedIn}}
  <p class="login-required">{{call .T "agent.login_required"}} <a href="/login">{{call .T "agent.login"}}</a></p>
  {{else}}
  <header class="agent">{{with .PDV}}<span class="outlet">{{.Name}}</span>{{end}}
    <button type="button" class="link" lv-click="logout">{{call .T "agent.logout"}}</button>
  </header>
  {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
  {{if .Notice}}<p class="notice" role="status">{{.Notice}}</p>{{end}}
  <label for="qr-input">{{call .T "qr.manual"}}</label>
  <input type="text" id="qr-input" name="code" value="{{.Raw}}" autocomplete="off" lv-change="scan">
  {{with .Scan}}
  <section class="scan-result">
    <h2>{{call $.T "qr.detected"}}</h2>
    <p class="raw"><code>{{$.Raw}}</code></p>
    {{if .Message}}<p class="message">{{.Message}}</p>{{end}}
    {{with .Subject}}<p class="subject">{{.Type}}: {{$.Subject}}</p>{{end}}
    {{with .Token}}<p class="token">{{.Purpose}}{{if .ExpiresAt}} · {{call $.T "qr.expires" .ExpiresAt}}{{end}}</p>{{end}}
    <form class="confirm" lv-submit="confirm">
      <label>{{call $.T "pdv.liters"}} <input type="number" name="liters" min="0" step="0.5" required></label>
      <button type="submit" class="primary">{{call $.T "qr.confirm"}}</button>
    </form>
    <button type="button" class="link" lv-click="reset">{{call $.T "qr.new_scan"}}</button>
  </section>
  {{end}}
  {{end}}
</div>
{{end}}
`
