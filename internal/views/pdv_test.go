package views

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seasky/seasky-web/internal/apiclient"
	"github.com/seasky/seasky-web/pkg/metrics"
	lvtest "github.com/seasky/seasky-web/pkg/testing"
)

func TestPDVRequiresLogin(t *testing.T) {
	f := &fakeAgent{pdv: kinama()}
	deps, _ := agentDeps(t, f, "")
	v := NewPDVView(deps)
	lv := lvtest.Mount(t, v, lvtest.WithSession(session))

	lv.Assert().HasClass("login-required").HasElement("a", `href="/login"`).NoText("PDV Kinama")
	lv.MustEvent("report_sale", map[string]any{"liters": "10"})
	assert.Empty(t, f.sales)
	assert.Nil(t, v.PDV())
}

func TestPDVReportsSale(t *testing.T) {
	f := &fakeAgent{pdv: kinama()}
	deps, _ := agentDeps(t, f, "acc")
	m := metrics.New("seasky")
	deps.Metrics = m
	lv := lvtest.Mount(t, NewPDVView(deps), lvtest.WithSession(session))

	lv.Assert().
		HasID("pdv-7").
		HasText("PDV Kinama").
		HasText("Ntahangwa, Bujumbura Mairie").
		HasText("120.50 L").
		HasText("Jean Agent").HasText(`<span class="role">pdv</span>`)

	lv.MustEvent("report_sale", map[string]any{"liters": "0"})
	lv.Assert().HasText("Indiquez une quantité de litres positive.")
	assert.Empty(t, f.sales)

	lv.MustEvent("report_sale", map[string]any{"liters": "12,5", "notes": " matin "})
	want := []apiclient.SaleReport{{PDVID: 7, LitersSold: 12.5, Notes: "matin"}}
	if diff := cmp.Diff(want, f.sales); diff != "" {
		t.Errorf("sales mismatch (-want +got):\n%s", diff)
	}
	lv.Assert().HasText("Vente enregistrée").NoText("Indiquez une quantité")

	lv.MustEvent("dismiss", nil)
	lv.Assert().NoText("Vente enregistrée")

	assert.Equal(t, map[string]int64{"profile": 2, "my_pdv": 2, "report_sale": 1}, m.AgentActions.Values())
}

func TestPDVRefreshesExpiredToken(t *testing.T) {
	f := &fakeAgent{pdv: kinama()}
	deps, tokens := agentDeps(t, f, "expired")
	v := NewPDVView(deps)
	lv := lvtest.Mount(t, v, lvtest.WithSession(session))

	require.NotNil(t, v.PDV())
	lv.Assert().HasText("PDV Kinama").NoText("Token expiré")

	stored, err := tokens.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.Token())
	assert.Equal(t, "ref", stored.Refresh())
}

func TestPDVFailedRefreshSignsOut(t *testing.T) {
	f := &fakeAgent{pdv: kinama(), refreshErr: errors.New("refresh token expired")}
	deps, tokens := agentDeps(t, f, "expired")
	m := metrics.New("seasky")
	deps.Metrics = m
	lv := lvtest.Mount(t, NewPDVView(deps), lvtest.WithSession(session))

	lv.Assert().HasClass("login-required")
	stored, err := tokens.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())
	assert.Equal(t, map[string]int64{"profile_failed": 1}, m.AgentActions.Values())
}

func TestPDVWithoutOutlet(t *testing.T) {
	f := &fakeAgent{pdvErr: &apiclient.APIError{Status: http.StatusNotFound, Message: "Not found."}}
	deps, _ := agentDeps(t, f, "acc")
	lv := lvtest.Mount(t, NewPDVView(deps), lvtest.WithSession(session))

	lv.Assert().HasText(escaped(t, "Aucun point de vente n'est associé à ce compte.")).NoText("Not found.")
	lv.MustEvent("report_sale", map[string]any{"liters": "5"})
	assert.Empty(t, f.sales)
}

func TestPDVLogout(t *testing.T) {
	f := &fakeAgent{pdv: kinama()}
	deps, tokens := agentDeps(t, f, "acc")
	lv := lvtest.Mount(t, NewPDVView(deps), lvtest.WithSession(session))

	lv.MustEvent("logout", nil)
	assert.Equal(t, 1, f.logouts)

	pushed := lv.Transport().Pushed("redirect")
	require.Len(t, pushed, 1)
	assert.Equal(t, "/login", pushed[0]["to"])
	assert.Equal(t, int64(500), pushed[0]["delay"])

	stored, err := tokens.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, stored.Authenticated())
	lv.Assert().HasClass("login-required").NoText("PDV Kinama")

	assert.ErrorIs(t, lv.Event("sell", nil), ErrUnknownEvent)
}

func TestFormatLiters(t *testing.T) {
	assert.Equal(t, "120.5 L", formatLiters(120.5))
	assert.Equal(t, "80.00 L", formatLiters("80.00"))
	assert.Equal(t, "-", formatLiters(nil))
	assert.Equal(t, "-", formatLiters(""))
}
