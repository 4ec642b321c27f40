package views

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seasky/seasky-web/internal/cart"
	"github.com/seasky/seasky-web/internal/catalog"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
)

// CartDeps are shared by every cart page.
type CartDeps struct {
	Sessions   *cart.Sessions
	Catalog    *catalog.Catalog
	Translator *i18n.Translator
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// CartView shows the session cart.
type CartView struct {
	core.BaseComponent

	deps      CartDeps
	tr        *i18n.Translator
	logger    logging.Logger
	sessionID string
	cart      *cart.Cart
}

// NewCartView creates a cart page.
func NewCartView(deps CartDeps) *CartView {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger{}
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault(i18n.DefaultLocale)
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}
	return &CartView{deps: deps, tr: deps.Translator, logger: deps.Logger, cart: cart.New()}
}

func (v *CartView) Name() string { return "cart" }

func (v *CartView) Title() string { return v.tr.T("cart.title") }

// Cart returns the cart being edited.
func (v *CartView) Cart() *cart.Cart { return v.cart }

func (v *CartView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.sessionID = session.GetString("session_id")
	v.logger = v.deps.Logger.With(logging.String("view", "cart"))
	if v.deps.Sessions == nil || v.sessionID == "" {
		return nil
	}
	c, err := v.deps.Sessions.Load(ctx, v.sessionID)
	if err != nil {
		v.logger.Warn("cart load failed", logging.Err(err))
	}
	v.cart = c
	return nil
}

func (v *CartView) Terminate(ctx context.Context, reason core.TerminateReason) error {
	v.save(ctx)
	return nil
}

func (v *CartView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "add":
		id, err := intParam(payload, "id")
		if err != nil {
			return err
		}
		qty, err := quantityParam(payload)
		if err != nil {
			return err
		}
		if _, err := v.deps.Catalog.AddTo(v.cart, id, qty); err != nil {
			return fmt.Errorf("%w: %w", ErrBadPayload, err)
		}
	case "update":
		id, err := intParam(payload, "id")
		if err != nil {
			return err
		}
		// lv-change sends the input under "value".
		key := "qty"
		if _, set := payload[key]; !set {
			key = "value"
		}
		qty, err := intParam(payload, key)
		if err != nil {
			return err
		}
		v.cart.UpdateQuantity(id, qty)
	case "remove":
		id, err := intParam(payload, "id")
		if err != nil {
			return err
		}
		v.cart.RemoveFromCart(id)
	case "clear":
		v.cart.ClearCart()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	v.deps.Metrics.CartEvent(event)
	v.save(ctx)
	return nil
}

func (v *CartView) HandleInfo(ctx context.Context, msg any) error { return nil }

// quantityParam reads "qty", which defaults to one.
func quantityParam(payload map[string]any) (int, error) {
	if _, set := payload["qty"]; !set {
		return 1, nil
	}
	return intParam(payload, "qty")
}

func (v *CartView) save(ctx context.Context) {
	if v.deps.Sessions == nil || v.sessionID == "" {
		return
	}
	if err := v.deps.Sessions.Save(context.WithoutCancel(ctx), v.sessionID, v.cart); err != nil {
		v.logger.Warn("cart save failed", logging.Err(err))
	}
}

// FormatPrice renders an amount in Burundian francs with grouped
// thousands, e.g. "12 500 BIF".
func FormatPrice(amount float64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(int64(amount+0.5), 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(" BIF")
	return b.String()
}

type cartLine struct {
	cart.Item
	Price    string
	Subtotal string
}

type cartPage struct {
	T          func(key string, args ...any) string
	Lines      []cartLine
	TotalItems int
	TotalPrice string
}

func (v *CartView) page() cartPage {
	p := cartPage{
		T:          v.tr.T,
		TotalItems: v.cart.TotalItems(),
		TotalPrice: FormatPrice(v.cart.TotalPrice()),
	}
	for _, it := range v.cart.Items() {
		p.Lines = append(p.Lines, cartLine{Item: it, Price: FormatPrice(it.UnitPrice), Subtotal: FormatPrice(it.Subtotal())})
	}
	return p
}

func (v *CartView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "cart", v.page())
	})
}

const cartTemplate = `
{{define "cart"}}
<div class="cart" data-live-view="cart">
  <h1>{{call .T "cart.title"}}</h1>
  {{if .Lines}}
  <table class="cart-lines">
    <tbody>
    {{range .Lines}}
      <tr id="line-{{.ProductID}}">
        <td>{{if .ImageRef}}<img src="{{.ImageRef}}" alt="{{.Title}}" width="48">{{end}}</td>
        <td class="title">{{.Title}}</td>
        <td class="price">{{.Price}}</td>
        <td><label>{{call $.T "cart.quantity"}} <input type="number" min="0" value="{{.Quantity}}" lv-change="update" lv-value-id="{{.ProductID}}"></label></td>
        <td class="subtotal">{{.Subtotal}}</td>
        <td><button type="button" class="link" lv-click="remove" lv-value-id="{{.ProductID}}">{{call $.T "cart.remove"}}</button></td>
      </tr>
    {{end}}
    </tbody>
  </table>
  <p class="totals"><span class="total-items">{{call .T "cart.total_items"}}: {{.TotalItems}}</span> <span class="total-price">{{call .T "cart.total_price"}}: {{.TotalPrice}}</span></p>
  <button type="button" lv-click="clear">{{call .T "cart.clear"}}</button>
  {{else}}
  <p class="empty">{{call .T "cart.empty"}}</p>
  {{end}}
  <p class="browse"><a href="/products">{{call .T "cart.browse"}}</a></p>
</div>
{{end}}
`
