package views

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/internal/credentials"
	"github.com/seasky/seasky-web/internal/registration"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/metrics"
	"github.com/seasky/seasky-web/pkg/state"
	lvtest "github.com/seasky/seasky-web/pkg/testing"
	"github.com/seasky/seasky-web/pkg/uploads"
)

// fakeAPI records registrations and logins.
type fakeAPI struct {
	mu       sync.Mutex
	payloads []*apiclient.Payload
	logins   []string
	regErr   error
	loginErr error
}

func (f *fakeAPI) Register(ctx context.Context, p *apiclient.Payload) (*apiclient.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &apiclient.AuthResponse{Success: true, Message: "Compte créé"}, nil
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (*apiclient.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, username)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &apiclient.AuthResponse{Access: "acc", Refresh: "ref"}, nil
}

func newStore(t *testing.T) *state.MemoryStore {
	store := state.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var session = core.Session{"session_id": "sess-1"}

func clientData() registration.FormData {
	return registration.FormData{
		"username":            "amina_nd",
		"email":               "amina@seasky.bi",
		"password":            "Lait2026x",
		"password2":           "Lait2026x",
		"full_name":           "Amina Ndayishimiye",
		"phone":               "61 23 45 67",
		"gender":              "female",
		"date_of_birth":       "1990-05-20",
		"nationality":         "burundian",
		"id_type":             "cni",
		"id_number":           "BJ-123456",
		"id_issue_date":       "2020-01-10",
		"id_expiry_date":      "2030-01-10",
		"address_line":        "Avenue de l'Université 12",
		"province":            "bujumbura_mairie",
		"commune":             "Mukaza",
		"colline_or_quartier": "Rohero",
		"accepted_terms":      true,
	}
}

// toSummary selects a client account, fills it and walks to the last step.
func toSummary(t *testing.T, v *RegisterView) {
	t.Helper()
	ctrl := v.Controller()
	require.NoError(t, ctrl.SelectRole(registration.RoleSelection{AccountType: "client", SubType: registration.SubIndividual}))
	for k, val := range clientData() {
		ctrl.SetField(k, val)
	}
	for ctrl.GoNext() && !ctrl.AtSummary() {
	}
	require.True(t, ctrl.AtSummary(), "errors: %v", ctrl.Errors())
}

func TestRegisterRoleSelection(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lv := lvtest.Mount(t, v)

	lv.Assert().HasID("account-type").HasText("Étape 1 sur 2")

	lv.MustEvent("select_role", map[string]any{"kind": "account_type", "value": "client"})
	assert.Equal(t, "client", v.Controller().Role().AccountType)
	lv.Assert().HasText("Étape 1 sur 5")

	field := registration.SubTypeField(registration.AccountClient)
	lv.MustEvent("set_field", map[string]any{"field": field, "value": registration.SubIndividual})
	assert.Equal(t, registration.SubIndividual, v.Controller().Role().SubType)

	lv.MustEvent("select_role", map[string]any{"kind": "sub_type", "value": "nope"})
	assert.Empty(t, v.Controller().Role().SubType)
}

func TestRegisterRoleFromQuery(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lvtest.Mount(t, v, lvtest.WithParams(core.Params{"type": "client", "category": registration.SubIndividual}))

	assert.Equal(t, registration.RoleSelection{AccountType: "client", SubType: registration.SubIndividual}, v.Controller().Role())
}

func TestRegisterNextShowsErrors(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lv := lvtest.Mount(t, v)

	lv.MustEvent("select_role", map[string]any{"kind": "account_type", "value": "client"})
	lv.MustEvent("next", nil)

	assert.Equal(t, 0, v.Controller().Current())
	assert.NotEmpty(t, v.Controller().Errors())
	lv.Assert().HasClass("error").HasElement("p", `role="alert"`)

	lv.MustEvent("set_field", map[string]any{"field": "username", "value": "amina_nd"})
	assert.Equal(t, "amina_nd", v.Controller().Data().String("username"))
	lv.MustEvent("set_field", map[string]any{"field": "username", "value": ""})
	assert.NotContains(t, v.Controller().Data(), "username")
}

func TestRegisterEventErrors(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lv := lvtest.Mount(t, v)

	assert.ErrorIs(t, lv.Event("launch", nil), ErrUnknownEvent)
	assert.ErrorIs(t, lv.Event("set_field", map[string]any{"field": "shoe_size"}), ErrUnknownField)
	assert.ErrorIs(t, lv.Event("set_field", map[string]any{"field": "id_front_image", "value": "x"}), ErrBadPayload)
	assert.ErrorIs(t, lv.Event("goto", map[string]any{"step": "two"}), ErrBadPayload)
	assert.ErrorIs(t, lv.Event("toggle", map[string]any{"field": "username"}), ErrBadPayload)
}

func TestRegisterToggle(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lv := lvtest.Mount(t, v)
	ctrl := v.Controller()

	ctrl.SetField("id_expiry_date", "2030-01-10")
	lv.MustEvent("toggle", map[string]any{"field": "id_no_expiry"})
	assert.True(t, ctrl.Data().Bool("id_no_expiry"))
	assert.Nil(t, ctrl.Data()["id_expiry_date"])

	lv.MustEvent("toggle", map[string]any{"field": "id_no_expiry"})
	assert.False(t, ctrl.Data().Bool("id_no_expiry"))
}

func pngDoc() uploads.Document {
	data := []byte("\x89PNG\r\n\x1a\nfake")
	return uploads.Document{FileName: "recto.png", ContentType: "image/png", Size: int64(len(data)), Data: data}
}

func TestRegisterUploadPreview(t *testing.T) {
	inbox := uploads.NewInbox(newStore(t), time.Minute)
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Inbox: inbox})
	lv := lvtest.Mount(t, v)

	doc, err := inbox.Put(context.Background(), pngDoc())
	require.NoError(t, err)

	lv.MustEvent("upload", map[string]any{"field": "id_front_image", "id": doc.ID})
	got := v.Controller().Data().File("id_front_image")
	require.NotNil(t, got)
	assert.Equal(t, "recto.png", got.FileName)

	pv, ok := lv.AwaitInfo(time.Second).(uploads.Preview)
	require.True(t, ok)
	assert.Equal(t, "id_front_image", pv.Field)

	url, pending := v.Preview("id_front_image")
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)
	assert.False(t, pending)

	// The upload was claimed.
	_, err = inbox.Claim(context.Background(), doc.ID)
	assert.ErrorIs(t, err, uploads.ErrNotFound)

	lv.MustEvent("upload", map[string]any{"field": "id_front_image", "id": ""})
	assert.Nil(t, v.Controller().Data().File("id_front_image"))
	url, _ = v.Preview("id_front_image")
	assert.Empty(t, url)
}

func TestRegisterUploadRejected(t *testing.T) {
	inbox := uploads.NewInbox(newStore(t), time.Minute)
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Inbox: inbox})
	lv := lvtest.Mount(t, v)

	doc, err := inbox.Put(context.Background(), uploads.Document{FileName: "notes.txt", ContentType: "text/plain", Size: 3, Data: []byte("abc")})
	require.NoError(t, err)

	lv.MustEvent("upload", map[string]any{"field": "proof_of_address", "id": doc.ID})
	assert.Nil(t, v.Controller().Data().File("proof_of_address"))
	lv.Assert().HasClass("notice")

	lv.MustEvent("upload", map[string]any{"field": "proof_of_address", "id": "gone"})
	assert.Equal(t, 2, lv.Assert().Count(`class="notice"`))

	lv.MustEvent("dismiss", nil)
	lv.Assert().NoText(`class="notice"`)

	lv.MustEvent("upload", map[string]any{"field": "proof_of_address", "error": "Fichier trop volumineux"})
	lv.Assert().HasText("Fichier trop volumineux")

	assert.ErrorIs(t, lv.Event("upload", map[string]any{"field": "username", "id": doc.ID}), ErrUnknownField)
	assert.Zero(t, lv.DrainInfo())
}

func TestRegisterSubmitLogsIn(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := newStore(t)
	api := &fakeAPI{}
	vault := credentials.NewVault(store, time.Minute)
	drafts := registration.NewDrafts(store, time.Hour)
	tokens := apiclient.NewSessionTokens(store, time.Hour)
	m := metrics.New("seasky")
	v := NewRegisterView(RegisterDeps{API: api, Vault: vault, Drafts: drafts, Tokens: tokens, Metrics: m})

	t.Run("submit", func(t *testing.T) {
		lv := lvtest.Mount(t, v, lvtest.WithSession(session))
		toSummary(t, v)

		lv.MustEvent("submit", nil)
		res, ok := lv.AwaitInfo(time.Second).(submitResult)
		require.True(t, ok)
		require.NoError(t, res.err)
		assert.True(t, res.loggedIn)

		lv.Assert().HasText(msgAutoLogin).HasElement("a", `href="/admin/credentials"`)
		pushed := lv.Transport().Pushed("redirect")
		require.Len(t, pushed, 1)
		assert.Equal(t, "/", pushed[0]["to"])
		assert.Equal(t, int64(1500), pushed[0]["delay"])
	})

	require.Len(t, api.payloads, 1)
	assert.Equal(t, []string{"amina_nd"}, api.logins)
	assert.Equal(t, map[string]int64{"ok": 1}, m.Registrations.Values())
	assert.Equal(t, int64(1), m.SubmitDuration.Count())

	creds, ok, err := vault.Take(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "amina_nd", creds.Username)
	assert.Equal(t, "Lait2026x", creds.Password)
	assert.Equal(t, "client", creds.AccountType)

	ts, err := tokens.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "acc", ts.Token())
	assert.Equal(t, "ref", ts.Refresh())

	// The draft saved by Terminate is the blank wizard.
	fresh := registration.NewController(api)
	_, err = drafts.Resume(context.Background(), "sess-1", fresh)
	require.NoError(t, err)
	assert.Equal(t, registration.RoleSelection{}, fresh.Role())
}

func TestRegisterSubmitLoginFails(t *testing.T) {
	api := &fakeAPI{loginErr: errors.New("bad credentials")}
	v := NewRegisterView(RegisterDeps{API: api})
	lv := lvtest.Mount(t, v)
	toSummary(t, v)

	lv.MustEvent("submit", nil)
	lv.AwaitInfo(time.Second)

	lv.Assert().HasText(msgLoginRedirect)
	pushed := lv.Transport().Pushed("redirect")
	require.Len(t, pushed, 1)
	assert.Equal(t, "/login", pushed[0]["to"])
	assert.Equal(t, int64(2000), pushed[0]["delay"])
}

func TestRegisterSubmitRejected(t *testing.T) {
	api := &fakeAPI{regErr: &apiclient.APIError{
		Status:  400,
		Message: "Données invalides",
		Payload: map[string]any{"errors": map[string]any{"phone": []any{"Numéro déjà utilisé"}}},
	}}
	v := NewRegisterView(RegisterDeps{API: api})
	lv := lvtest.Mount(t, v)
	toSummary(t, v)

	lv.MustEvent("submit", nil)
	res := lv.AwaitInfo(time.Second).(submitResult)
	require.Error(t, res.err)

	assert.Empty(t, api.logins)
	assert.Empty(t, lv.Transport().Pushed("redirect"))
	assert.Equal(t, "Numéro déjà utilisé", v.Controller().Errors()["phone"])
	lv.Assert().HasText("Numéro déjà utilisé").NoText(msgAutoLogin)

	// The wizard accepts a new attempt.
	require.NoError(t, lv.Event("submit", nil))
	lv.AwaitInfo(time.Second)
}

func TestRegisterSubmitWithoutSocket(t *testing.T) {
	api := &fakeAPI{}
	v := NewRegisterView(RegisterDeps{API: api})
	ctx := context.Background()
	require.NoError(t, v.Mount(ctx, core.Params{}, core.Session{}))
	defer func() { require.NoError(t, v.Terminate(ctx, core.TerminateNormal)) }()

	toSummary(t, v)
	require.NoError(t, v.HandleEvent(ctx, "submit", map[string]any{}))

	assert.Len(t, api.payloads, 1)
	assert.Equal(t, msgAutoLogin, v.page().Success)
}

func TestRegisterDebugOverlay(t *testing.T) {
	v := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Debug: true})
	lv := lvtest.Mount(t, v)

	lv.Assert().HasClass("debug-toggle").NoText("debug-overlay")
	lv.MustEvent("select_role", map[string]any{"kind": "account_type", "value": "client"})
	lv.MustEvent("set_field", map[string]any{"field": "password", "value": "Lait2026x"})
	lv.MustEvent("toggle_debug", nil)
	lv.Assert().HasClass("debug-overlay").HasText("*********").NoText("Lait2026x")

	lv.MustEvent("toggle_debug", nil)
	lv.Assert().NoText("debug-overlay")

	off := NewRegisterView(RegisterDeps{API: &fakeAPI{}})
	lvOff := lvtest.Mount(t, off)
	lvOff.MustEvent("toggle_debug", nil)
	lvOff.Assert().NoText("debug-overlay").NoText("debug-toggle")
}

func TestRegisterDraftResume(t *testing.T) {
	drafts := registration.NewDrafts(newStore(t), time.Hour)

	first := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Drafts: drafts})
	lv := lvtest.Mount(t, first, lvtest.WithSession(session))
	lv.MustEvent("select_role", map[string]any{"kind": "account_type", "value": "fournisseur"})
	lv.MustEvent("set_field", map[string]any{"field": "username", "value": "ferme_ngozi"})

	second := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Drafts: drafts})
	lvtest.Mount(t, second, lvtest.WithSession(session))
	assert.Equal(t, "fournisseur", second.Controller().Role().AccountType)
	assert.Equal(t, "ferme_ngozi", second.Controller().Data().String("username"))

	lv.MustEvent("restart", nil)
	third := NewRegisterView(RegisterDeps{API: &fakeAPI{}, Drafts: drafts})
	lvtest.Mount(t, third, lvtest.WithSession(session))
	assert.Empty(t, third.Controller().Role().AccountType)
}
