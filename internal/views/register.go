package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/internal/credentials"
	"github.com/seasky/seasky-web/internal/registration"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/forms"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
	"github.com/seasky/seasky-web/pkg/uploads"
)

var (
	ErrUnknownEvent = errors.New("views: unknown event")
	ErrUnknownField = errors.New("views: unknown field")
	ErrBadPayload   = errors.New("views: malformed event payload")
)

// Success messages after registration.
const (
	msgRegistered      = "Inscription réussie !"
	msgAutoLogin       = "Inscription réussie ! Connexion automatique..."
	msgLoginRedirect   = "Inscription réussie ! Redirection vers la connexion..."
	msgUploadFailed    = "Le fichier n'a pas pu être chargé."
	redirectHomeDelay  = 1500 * time.Millisecond
	redirectLoginDelay = 2000 * time.Millisecond
)

// AccountAPI is the part of the API client the registration page uses.
type AccountAPI interface {
	Register(ctx context.Context, payload *apiclient.Payload) (*apiclient.AuthResponse, error)
	Login(ctx context.Context, username, password string) (*apiclient.AuthResponse, error)
}

// RegisterDeps are shared by every registration page.
type RegisterDeps struct {
	API        AccountAPI
	Inbox      *uploads.Inbox
	Uploads    uploads.Config
	Drafts     *registration.Drafts
	Vault      *credentials.Vault
	Tokens     *apiclient.SessionTokens
	Translator *i18n.Translator
	Debug      bool
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// submitResult is delivered to HandleInfo when a submission finishes.
type submitResult struct {
	creds    credentials.Credentials
	resp     *apiclient.AuthResponse
	err      error
	loggedIn bool
	login    *apiclient.AuthResponse
	loginErr error
	took     time.Duration
}

// RegisterView is the registration wizard page.
type RegisterView struct {
	core.BaseComponent

	deps      RegisterDeps
	tr        *i18n.Translator
	logger    logging.Logger
	ctrl      *registration.Controller
	previewer *uploads.Previewer

	sessionID string
	bgCtx     context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.Mutex
	previews  map[string]string
	notices   []string
	pending   bool
	showDebug bool
	success   string
}

// NewRegisterView creates a registration page.
func NewRegisterView(deps RegisterDeps) *RegisterView {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger{}
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault(i18n.DefaultLocale)
	}
	if deps.Uploads.MaxFileSize == 0 {
		deps.Uploads = uploads.DefaultConfig()
	}
	v := &RegisterView{
		deps:     deps,
		tr:       deps.Translator,
		logger:   deps.Logger,
		previews: make(map[string]string),
	}
	v.ctrl = registration.NewController(deps.API, registration.WithLogger(deps.Logger))
	return v
}

func (v *RegisterView) Name() string { return "register" }

func (v *RegisterView) Title() string { return v.tr.T("wizard.title") }

// Controller exposes the wizard state.
func (v *RegisterView) Controller() *registration.Controller { return v.ctrl }

func (v *RegisterView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.sessionID = session.GetString("session_id")
	v.logger = v.deps.Logger.With(logging.String("view", "register"))
	v.bgCtx, v.cancel = context.WithCancel(logging.ContextWithLogger(context.WithoutCancel(ctx), v.logger))

	v.previewer = uploads.NewPreviewer(v.deliverPreview)

	if v.deps.Drafts != nil && v.sessionID != "" {
		ok, err := v.deps.Drafts.Resume(ctx, v.sessionID, v.ctrl)
		if err != nil {
			v.logger.Warn("draft resume failed", logging.Err(err))
		} else if ok {
			v.logger.Debug("draft resumed", logging.Int("step", v.ctrl.Current()))
		}
	}

	if at := params.Get("type"); at != "" && v.ctrl.Role().AccountType == "" {
		if err := v.ctrl.SelectRole(registration.RoleSelection{AccountType: at, SubType: params.Get("category")}); err != nil {
			v.logger.Debug("ignoring role from query", logging.Err(err))
		}
	}
	return nil
}

func (v *RegisterView) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
	if v.previewer != nil {
		v.previewer.Close()
	}
	v.saveDraft(ctx)
	return nil
}

func (v *RegisterView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	var err error
	switch event {
	case "select_role":
		err = v.selectRole(payload)
	case "set_field":
		err = v.setField(payload)
	case "toggle":
		err = v.toggle(payload)
	case "next":
		v.ctrl.GoNext()
	case "back":
		v.ctrl.GoBack()
	case "goto":
		var step int
		if step, err = intParam(payload, "step"); err == nil {
			err = v.ctrl.GoToStep(step)
		}
	case "upload":
		err = v.upload(ctx, payload)
	case "submit":
		return v.submit(ctx)
	case "restart":
		v.restart(ctx)
		return nil
	case "dismiss":
		v.mu.Lock()
		v.notices = nil
		v.mu.Unlock()
		return nil
	case "toggle_debug":
		if v.deps.Debug {
			v.mu.Lock()
			v.showDebug = !v.showDebug
			v.mu.Unlock()
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if err != nil {
		return err
	}
	v.saveDraft(ctx)
	return nil
}

func (v *RegisterView) HandleInfo(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case uploads.Preview:
		v.applyPreview(m)
	case submitResult:
		v.finishSubmit(ctx, m)
	}
	return nil
}

func (v *RegisterView) selectRole(payload map[string]any) error {
	role := v.ctrl.Role()

	kind := stringParam(payload, "kind")
	switch {
	case kind == "account_type":
		role.AccountType = stringParam(payload, "value")
	case kind == "sub_type":
		role.SubType = stringParam(payload, "value")
	default:
		if at, ok := payload["account_type"]; ok {
			role.AccountType, _ = at.(string)
		}
		if sub, ok := payload["sub_type"]; ok {
			role.SubType, _ = sub.(string)
		}
	}

	if !offersSubType(role) {
		role.SubType = ""
	}
	return v.ctrl.SelectRole(role)
}

func offersSubType(role registration.RoleSelection) bool {
	for _, o := range registration.SubTypes(role.Type()) {
		if o.Value == role.SubType {
			return true
		}
	}
	return false
}

func (v *RegisterView) setField(payload map[string]any) error {
	name := stringParam(payload, "field")
	f, ok := registration.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if f.Type == forms.FieldFile {
		return fmt.Errorf("%w: %q is set through upload", ErrBadPayload, name)
	}
	value := stringParam(payload, "value")

	// The category chooser drives the role.
	role := v.ctrl.Role()
	if sub := registration.SubTypeField(role.Type()); sub != "" && sub == name {
		role.SubType = value
		return v.ctrl.SelectRole(role)
	}

	if value == "" {
		v.ctrl.SetField(name, nil)
		return nil
	}
	v.ctrl.SetField(name, value)
	return nil
}

func (v *RegisterView) toggle(payload map[string]any) error {
	name := stringParam(payload, "field")
	f, ok := registration.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	data := v.ctrl.Data()

	switch f.Type {
	case forms.FieldCheckbox:
		on := !data.Bool(name)
		v.ctrl.SetField(name, on)
		if name == "id_no_expiry" && on {
			v.ctrl.SetField("id_expiry_date", nil)
		}
	case forms.FieldMultiple:
		value := stringParam(payload, "value")
		if value == "" {
			return fmt.Errorf("%w: toggle %q without value", ErrBadPayload, name)
		}
		list := data.Strings(name)
		if i := indexOf(list, value); i >= 0 {
			list = append(list[:i:i], list[i+1:]...)
		} else {
			list = append(list, value)
		}
		v.ctrl.SetField(name, list)
	default:
		return fmt.Errorf("%w: %q is not toggleable", ErrBadPayload, name)
	}
	return nil
}

func indexOf(list []string, s string) int {
	for i, item := range list {
		if item == s {
			return i
		}
	}
	return -1
}

func (v *RegisterView) upload(ctx context.Context, payload map[string]any) error {
	field := stringParam(payload, "field")
	if !registration.IsFileField(field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	v.previewer.Cancel(field)
	v.mu.Lock()
	delete(v.previews, field)
	v.mu.Unlock()

	// Rejected in the browser before sending, or removed.
	if msg := stringParam(payload, "error"); msg != "" {
		v.ctrl.SetField(field, nil)
		v.notice(msg)
		v.deps.Metrics.Upload("rejected")
		return nil
	}
	id := stringParam(payload, "id")
	if id == "" {
		v.ctrl.SetField(field, nil)
		return nil
	}

	doc, err := v.deps.Inbox.Claim(ctx, id)
	if err != nil {
		v.logger.Warn("upload claim failed", logging.String("field", field), logging.Err(err))
		v.ctrl.SetField(field, nil)
		v.notice(msgUploadFailed)
		v.deps.Metrics.Upload("failed")
		return nil
	}
	if err := v.deps.Uploads.Check(doc.FileName, doc.Size, doc.ContentType); err != nil {
		v.ctrl.SetField(field, nil)
		v.deps.Metrics.Upload("rejected")
		var uerr *uploads.Error
		if errors.As(err, &uerr) {
			v.notice(uerr.Message())
		} else {
			v.notice(msgUploadFailed)
		}
		return nil
	}

	doc.Field = field
	v.ctrl.SetField(field, &doc)
	v.deps.Metrics.Upload("accepted")
	if doc.IsImage() {
		v.previewer.Request(doc)
	}
	return nil
}

func (v *RegisterView) deliverPreview(pv uploads.Preview) {
	if s := v.Socket(); s != nil {
		if err := s.SendInfo(pv); err == nil {
			return
		}
	}
	v.applyPreview(pv)
}

func (v *RegisterView) applyPreview(pv uploads.Preview) {
	if !v.previewer.Apply(pv) {
		return
	}
	v.mu.Lock()
	if pv.URL != "" {
		v.previews[pv.Field] = pv.URL
	}
	if pv.Notice != "" {
		v.notices = append(v.notices, pv.Notice)
	}
	v.mu.Unlock()
}

// Preview implements PreviewState.
func (v *RegisterView) Preview(field string) (string, bool) {
	v.mu.Lock()
	url := v.previews[field]
	v.mu.Unlock()
	return url, url == "" && v.previewer != nil && v.previewer.Pending(field)
}

func (v *RegisterView) notice(msg string) {
	v.mu.Lock()
	v.notices = append(v.notices, msg)
	v.mu.Unlock()
}

func (v *RegisterView) submit(ctx context.Context) error {
	v.mu.Lock()
	if v.pending {
		v.mu.Unlock()
		return registration.ErrSubmitInProgress
	}
	v.pending = true
	v.success = ""
	v.mu.Unlock()

	data := v.ctrl.Data()
	username, password := data.String("username"), data.String("password")
	creds := credentials.Credentials{
		Username:    username,
		Phone:       data.String("phone"),
		Email:       data.String("email"),
		Role:        data.String("role"),
		AccountType: data.String("account_type"),
		Password:    password,
	}

	run := func() submitResult {
		start := time.Now()
		resp, err := v.ctrl.Submit(v.bgCtx)
		res := submitResult{creds: creds, resp: resp, err: err, took: time.Since(start)}
		if err != nil || username == "" || password == "" {
			return res
		}
		if login, lerr := v.deps.API.Login(v.bgCtx, username, password); lerr != nil {
			res.loginErr = lerr
		} else {
			res.loggedIn, res.login = true, login
		}
		return res
	}

	socket := v.Socket()
	if socket == nil {
		v.finishSubmit(ctx, run())
		return nil
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		res := run()
		if err := socket.SendInfo(res); err != nil {
			v.logger.Warn("submit result dropped", logging.Err(err))
			v.mu.Lock()
			v.pending = false
			v.mu.Unlock()
		}
	}()
	return nil
}

func (v *RegisterView) finishSubmit(ctx context.Context, res submitResult) {
	v.mu.Lock()
	v.pending = false
	v.mu.Unlock()

	if res.err != nil {
		outcome := "invalid"
		if !errors.Is(res.err, registration.ErrValidation) {
			outcome = "failed"
			v.logger.Warn("registration failed", logging.Err(res.err))
		}
		v.deps.Metrics.Registration(outcome, res.took)
		v.saveDraft(ctx)
		return
	}
	v.deps.Metrics.Registration("ok", res.took)

	msg, to, delay := msgLoginRedirect, "/login", redirectLoginDelay
	switch {
	case res.loggedIn:
		msg, to, delay = msgAutoLogin, "/", redirectHomeDelay
	case res.loginErr != nil:
		v.logger.Warn("auto login failed", logging.Err(res.loginErr))
	}
	if res.resp != nil && res.resp.Message != "" && !res.loggedIn && res.loginErr == nil {
		msg = res.resp.Message
	}

	v.mu.Lock()
	v.success = msg
	v.previews = make(map[string]string)
	v.notices = nil
	v.mu.Unlock()

	if v.deps.Drafts != nil && v.sessionID != "" {
		if err := v.deps.Drafts.Discard(ctx, v.sessionID); err != nil {
			v.logger.Warn("draft discard failed", logging.Err(err))
		}
	}
	if v.deps.Vault != nil && v.sessionID != "" {
		if err := v.deps.Vault.Put(ctx, v.sessionID, res.creds); err != nil {
			v.logger.Warn("credentials not kept", logging.Err(err))
		}
	}
	if res.login != nil && v.deps.Tokens != nil && v.sessionID != "" {
		ts := apiclient.NewTokenStore()
		ts.SetTokens(res.login.AccessToken(), res.login.RefreshToken())
		if err := v.deps.Tokens.Save(ctx, v.sessionID, ts); err != nil {
			v.logger.Warn("session tokens not kept", logging.Err(err))
		}
	}
	if s := v.Socket(); s != nil {
		_ = s.Push("redirect", map[string]any{"to": to, "delay": delay.Milliseconds()})
	}
}

func (v *RegisterView) restart(ctx context.Context) {
	v.ctrl.Reset()
	v.mu.Lock()
	for field := range v.previews {
		v.previewer.Cancel(field)
	}
	v.previews = make(map[string]string)
	v.notices = nil
	v.success = ""
	v.mu.Unlock()

	if v.deps.Drafts != nil && v.sessionID != "" {
		if err := v.deps.Drafts.Discard(ctx, v.sessionID); err != nil {
			v.logger.Warn("draft discard failed", logging.Err(err))
		}
	}
}

func (v *RegisterView) saveDraft(ctx context.Context) {
	if v.deps.Drafts == nil || v.sessionID == "" {
		return
	}
	if err := v.deps.Drafts.Save(context.WithoutCancel(ctx), v.sessionID, v.ctrl); err != nil {
		v.logger.Warn("draft save failed", logging.Err(err))
	}
}

type choice struct {
	Value    string
	Label    string
	Selected bool
}

type stepperItem struct {
	Index  int
	Label  string
	Active bool
	Done   bool
}

type registerPage struct {
	T              func(key string, args ...any) string
	Roles          []choice
	SubTypes       []choice
	OnRoleStep     bool
	Stepper        []stepperItem
	Progress       string
	Step           StepView
	TopError       string
	Notices        []string
	First          bool
	Last           bool
	Submitting     bool
	Success        string
	HasCredentials bool
	DebugOn        bool
	ShowDebug      bool
	Debug          registration.DebugReport
}

func (v *RegisterView) page() registerPage {
	role := v.ctrl.Role()
	steps := v.ctrl.Steps()
	current := v.ctrl.Current()

	p := registerPage{
		T:          v.tr.T,
		OnRoleStep: current == 0,
		Progress:   v.tr.T("wizard.progress", current+1, len(steps)),
		TopError:   v.ctrl.TopError(),
		First:      current == 0,
		Last:       current == len(steps)-1,
		DebugOn:    v.deps.Debug,
	}
	p.Step = BuildStep(steps[current], steps, role, v.ctrl.Data(), v.ctrl.Errors(), v, v.tr)

	for _, at := range registration.AccountTypes {
		p.Roles = append(p.Roles, choice{Value: string(at), Label: v.tr.T("roles." + string(at)), Selected: role.Type() == at})
	}
	for _, o := range registration.SubTypes(role.Type()) {
		p.SubTypes = append(p.SubTypes, choice{Value: o.Value, Label: o.Label, Selected: role.SubType == o.Value})
	}
	for _, s := range steps {
		p.Stepper = append(p.Stepper, stepperItem{Index: s.Index, Label: v.tr.T(s.Label), Active: s.Index == current, Done: s.Index < current})
	}

	v.mu.Lock()
	p.Notices = append([]string(nil), v.notices...)
	p.Submitting = v.pending
	p.Success = v.success
	p.HasCredentials = v.success != "" && v.deps.Vault != nil && v.sessionID != ""
	p.ShowDebug = v.deps.Debug && v.showDebug
	v.mu.Unlock()

	if p.ShowDebug {
		p.Debug = registration.Inspect(v.ctrl)
	}
	return p
}

func (v *RegisterView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "register", v.page())
	})
}

const registerTemplate = `
{{define "register"}}
<div class="register" data-live-view="register">
  <h1>{{call .T "wizard.title"}}</h1>
  {{if .Success}}
  <div class="alert success" role="status">{{.Success}}</div>
  {{if .HasCredentials}}<a class="link" href="/admin/credentials">{{call .T "credentials.title"}}</a>{{end}}
  {{else}}
  {{if .OnRoleStep}}
  <div class="role-select">
    <label for="account-type">{{call .T "wizard.choose_role"}}</label>
    <select id="account-type" lv-change="select_role" lv-value-kind="account_type">
      <option value="">Sélectionner…</option>
      {{range .Roles}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
    </select>
  </div>
  {{end}}
  <ol class="stepper">
    {{range .Stepper}}<li class="{{if .Active}}active{{else if .Done}}done{{end}}">{{if .Done}}<button type="button" class="link" lv-click="goto" lv-value-step="{{.Index}}">{{.Label}}</button>{{else}}{{.Label}}{{end}}</li>{{end}}
  </ol>
  <p class="progress">{{.Progress}}</p>
  {{if .TopError}}<div class="alert error" role="alert">{{.TopError}}</div>{{end}}
  {{range .Notices}}<div class="notice">{{.}} <button type="button" class="link" lv-click="dismiss">×</button></div>{{end}}
  {{template "step" .Step}}
  <div class="actions">
    {{if not .First}}<button type="button" lv-click="back">{{call .T "wizard.back"}}</button>{{end}}
    {{if .Last}}
    <button type="button" class="primary" lv-click="submit"{{if .Submitting}} disabled{{end}}>{{if .Submitting}}{{call .T "wizard.submitting"}}{{else}}{{call .T "wizard.submit"}}{{end}}</button>
    {{else}}
    <button type="button" class="primary" lv-click="next">{{call .T "wizard.next"}}</button>
    {{end}}
  </div>
  {{end}}
  <button type="button" class="link restart" lv-click="restart">{{call .T "wizard.restart"}}</button>
  {{if .DebugOn}}
  <button type="button" class="link debug-toggle" lv-click="toggle_debug">{{call .T "wizard.debug"}}</button>
  {{if .ShowDebug}}{{with .Debug}}
  <aside class="debug-overlay">
    <p>Étape {{.StepIndex}} ({{.StepID}}) · {{.AccountType}} / {{.Category}}</p>
    <ul class="checklist">{{range .Checklist}}<li class="{{if .Filled}}ok{{else}}missing{{end}}">{{.Field}}{{if .Error}}: {{.Error}}{{end}}</li>{{end}}</ul>
    {{if .Stale}}<p class="stale">Champs hors étapes: {{range $i, $f := .Stale}}{{if $i}}, {{end}}{{$f}}{{end}}</p>{{end}}
    <dl>{{range .State}}<dt>{{.Key}}</dt><dd>{{.Value}}</dd>{{end}}</dl>
  </aside>
  {{end}}{{end}}
  {{end}}
</div>
{{end}}
`

func stringParam(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(payload[key])
}

func intParam(payload map[string]any, key string) (int, error) {
	switch v := payload[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrBadPayload, key, v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: missing %s", ErrBadPayload, key)
}
