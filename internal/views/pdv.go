package views

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
)

// PDVView is the point-of-sale agent's page: the outlet, its stock and a
// sale report form.
type PDVView struct {
	core.BaseComponent

	deps  AgentDeps
	tr    *i18n.Translator
	agent agentSession

	mu      sync.Mutex
	profile *apiclient.Profile
	pdv     *apiclient.PDV
	errMsg  string
	notice  string
}

// NewPDVView creates a point-of-sale page.
func NewPDVView(deps AgentDeps) *PDVView {
	deps = deps.withDefaults()
	return &PDVView{deps: deps, tr: deps.Translator, agent: agentSession{deps: deps}}
}

func (v *PDVView) Name() string { return "pdv" }

func (v *PDVView) Title() string { return v.tr.T("pdv.title") }

// PDV returns the loaded point of sale, if any.
func (v *PDVView) PDV() *apiclient.PDV {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pdv
}

func (v *PDVView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.agent.mount(ctx, session, v.deps.Logger.With(logging.String("view", "pdv")))
	if !v.agent.signedIn() {
		return nil
	}
	v.load(ctx)
	return nil
}

func (v *PDVView) load(ctx context.Context) {
	var profile *apiclient.Profile
	err := v.agent.call(ctx, "profile", func(ctx context.Context) error {
		var err error
		profile, err = v.agent.api.Profile(ctx)
		return err
	})
	if err != nil {
		v.setError(apiclient.Message(err))
		return
	}

	var pdv *apiclient.PDV
	err = v.agent.call(ctx, "my_pdv", func(ctx context.Context) error {
		var err error
		pdv, err = v.agent.api.MyPDV(ctx)
		return err
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	v.profile, v.pdv = profile, pdv
	switch {
	case apiclient.IsStatus(err, http.StatusNotFound):
		v.errMsg = v.tr.T("pdv.none")
	case err != nil:
		v.errMsg = apiclient.Message(err)
	default:
		v.errMsg = ""
	}
}

func (v *PDVView) setError(msg string) {
	v.mu.Lock()
	v.errMsg = msg
	v.mu.Unlock()
}

func (v *PDVView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "report_sale":
		return v.reportSale(ctx, payload)
	case "reload":
		if v.agent.signedIn() {
			v.load(ctx)
		}
	case "dismiss":
		v.mu.Lock()
		v.notice, v.errMsg = "", ""
		v.mu.Unlock()
	case "logout":
		v.agent.logout(ctx, v.Socket())
		v.mu.Lock()
		v.profile, v.pdv = nil, nil
		v.mu.Unlock()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

func (v *PDVView) reportSale(ctx context.Context, payload map[string]any) error {
	pdv := v.PDV()
	if pdv == nil || !v.agent.signedIn() {
		v.setError(v.tr.T("pdv.none"))
		return nil
	}
	liters, err := litersParam(payload, "liters")
	if err != nil {
		v.setError(v.tr.T("pdv.invalid_liters"))
		return nil
	}

	var resp map[string]any
	err = v.agent.call(ctx, "report_sale", func(ctx context.Context) error {
		var err error
		resp, err = v.agent.api.ReportSale(ctx, apiclient.SaleReport{
			PDVID:      pdv.ID,
			LitersSold: liters,
			Notes:      strings.TrimSpace(stringParam(payload, "notes")),
		})
		return err
	})
	if err != nil {
		v.setError(apiclient.Message(err))
		return nil
	}

	msg, _ := resp["message"].(string)
	if msg == "" {
		msg = v.tr.T("pdv.sale_reported", formatLiters(liters))
	}
	v.load(ctx)
	v.mu.Lock()
	v.notice = msg
	v.mu.Unlock()
	return nil
}

func (v *PDVView) HandleInfo(ctx context.Context, msg any) error { return nil }

// formatLiters renders a stock level. The API sends decimals as strings.
func formatLiters(value any) string {
	switch n := value.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64) + " L"
	case string:
		if n != "" {
			return n + " L"
		}
	}
	return "-"
}

type pdvPage struct {
	T        func(key string, args ...any) string
	SignedIn bool
	Agent    string
	Role     string
	PDV      *apiclient.PDV
	Location string
	Stock    string
	Error    string
	Notice   string
}

func (v *PDVView) page() pdvPage {
	v.mu.Lock()
	defer v.mu.Unlock()

	p := pdvPage{T: v.tr.T, SignedIn: v.agent.signedIn(), PDV: v.pdv, Error: v.errMsg, Notice: v.notice}
	if v.profile != nil {
		p.Agent = v.profile.FullName
		if p.Agent == "" {
			p.Agent = v.profile.Username
		}
		p.Role = v.profile.EffectiveRole()
	}
	if v.pdv != nil {
		var parts []string
		for _, s := range []string{v.pdv.Address, v.pdv.Commune, v.pdv.Province} {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		p.Location = strings.Join(parts, ", ")
		p.Stock = "-"
		if v.pdv.Stock != nil {
			p.Stock = formatLiters(v.pdv.Stock.CurrentLiters)
		}
	}
	return p
}

func (v *PDVView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "pdv", v.page())
	})
}

const pdvTemplate = `
{{define "pdv"}}
<div class="pdv" data-live-view="pdv">
  <h1>{{call .T "pdv.title"}}</h1>
  {{if not .SignedIn}}
  <p class="login-required">{{call .T "agent.login_required"}} <a href="/login">{{call .T "agent.login"}}</a></p>
  {{else}}
  <header class="agent">{{if .Agent}}<span class="agent-name">{{.Agent}}</span> <span class="role">{{.Role}}</span>{{end}}
    <button type="button" class="link" lv-click="reload">{{call .T "pdv.reload"}}</button>
    <button type="button" class="link" lv-click="logout">{{call .T "agent.logout"}}</button>
  </header>
  {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
  {{if .Notice}}<p class="notice" role="status">{{.Notice}} <button type="button" class="link" lv-click="dismiss">×</button></p>{{end}}
  {{with .PDV}}
  <section class="outlet" id="pdv-{{.ID}}">
    <h2>{{.Name}}</h2>
    {{if $.Location}}<p class="location">{{$.Location}}</p>{{end}}
    {{if .PartnerFullName}}<p class="partner">{{call $.T "pdv.partner"}}: {{.PartnerFullName}}</p>{{end}}
    <p class="stock">{{call $.T "pdv.stock"}}: <strong>{{$.Stock}}</strong></p>
  </section>
  <form class="sale" lv-submit="report_sale">
    <h2>{{call $.T "pdv.report_sale"}}</h2>
    <label>{{call $.T "pdv.liters"}} <input type="number" name="liters" min="0" step="0.5" required></label>
    <label>{{call $.T "pdv.notes"}} <input type="text" name="notes"></label>
    <button type="submit" class="primary">{{call $.T "pdv.submit"}}</button>
  </form>
  {{end}}
  {{end}}
</div>
{{end}}
`
