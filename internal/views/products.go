package views

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/seasky/seasky-web/internal/cart"
	"github.com/seasky/seasky-web/internal/catalog"
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/i18n"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/metrics"
)

// ProductsDeps are shared by every catalog page.
type ProductsDeps struct {
	Sessions   *cart.Sessions
	Catalog    *catalog.Catalog
	Translator *i18n.Translator
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// ProductsView lists the catalog with search, filters and sorting, and
// adds products to the session cart.
type ProductsView struct {
	core.BaseComponent

	deps      ProductsDeps
	tr        *i18n.Translator
	logger    logging.Logger
	sessionID string
	cart      *cart.Cart
	query     catalog.Query
	notice    string
}

// NewProductsView creates a catalog page.
func NewProductsView(deps ProductsDeps) *ProductsView {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger{}
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault(i18n.DefaultLocale)
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}
	return &ProductsView{deps: deps, tr: deps.Translator, logger: deps.Logger, cart: cart.New()}
}

func (v *ProductsView) Name() string { return "products" }

func (v *ProductsView) Title() string { return v.tr.T("products.title") }

// Cart returns the session cart products are added to.
func (v *ProductsView) Cart() *cart.Cart { return v.cart }

// Query returns the active search and filters.
func (v *ProductsView) Query() catalog.Query { return v.query }

func (v *ProductsView) Mount(ctx context.Context, params core.Params, session core.Session) error {
	v.sessionID = session.GetString("session_id")
	v.logger = v.deps.Logger.With(logging.String("view", "products"))
	v.query = catalog.Query{
		Search: params.Get("q"),
		Type:   params.Get("type"),
		Sort:   params.Get("sort"),
	}
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

func (v *ProductsView) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	switch event {
	case "search":
		v.query.Search = stringParam(payload, "value")
	case "filter":
		return v.filter(payload)
	case "sort":
		v.query.Sort = stringParam(payload, "value")
	case "bulk_only":
		v.query.BulkOnly = !v.query.BulkOnly
	case "reset":
		v.query = catalog.Query{}
	case "add":
		return v.add(ctx, payload)
	case "dismiss":
		v.notice = ""
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return nil
}

func (v *ProductsView) HandleInfo(ctx context.Context, msg any) error { return nil }

func (v *ProductsView) filter(payload map[string]any) error {
	value := stringParam(payload, "value")
	switch field := stringParam(payload, "field"); field {
	case "type":
		v.query.Type = value
	case "price":
		v.query.Price = value
	case "rating":
		v.query.Rating = value
	case "availability":
		v.query.Availability = value
	case "promotion":
		v.query.Promotion = value
	default:
		return fmt.Errorf("%w: filter %q", ErrBadPayload, field)
	}
	return nil
}

func (v *ProductsView) add(ctx context.Context, payload map[string]any) error {
	id, err := intParam(payload, "id")
	if err != nil {
		return err
	}
	qty, err := quantityParam(payload)
	if err != nil {
		return err
	}
	p, err := v.deps.Catalog.AddTo(v.cart, id, qty)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	v.deps.Metrics.CartEvent("add")
	v.notice = v.tr.T("products.added", p.Name)

	if v.deps.Sessions == nil || v.sessionID == "" {
		return nil
	}
	if err := v.deps.Sessions.Save(context.WithoutCancel(ctx), v.sessionID, v.cart); err != nil {
		v.logger.Warn("cart save failed", logging.Err(err))
	}
	return nil
}

type productCard struct {
	catalog.Product
	Price     string
	BasePrice string
	BulkPrice string
	Stars     string
}

type productsPage struct {
	T         func(key string, args ...any) string
	Query     catalog.Query
	Filters   []productFilter
	Sorts     []choice
	Products  []productCard
	Notice    string
	CartItems int
}

type productFilter struct {
	Field   string
	Label   string
	Options []choice
}

var filterOptions = []struct {
	field  string
	values []string
}{
	{"type", []string{catalog.TypeMilk, catalog.TypeYogurt, catalog.TypeCheese, catalog.TypeButter, catalog.TypeCream}},
	{"price", []string{catalog.PriceUnder2000, catalog.Price2000To3000, catalog.PriceOver3000}},
	{"rating", []string{catalog.Rating4Plus, catalog.RatingBelow4}},
	{"availability", []string{catalog.InStock, catalog.OutOfStock}},
	{"promotion", []string{catalog.OnSale}},
}

var sortOrders = []string{catalog.SortNameAsc, catalog.SortNameDesc, catalog.SortPriceAsc, catalog.SortPriceDesc, catalog.SortRatingDesc}

func (v *ProductsView) page() productsPage {
	q := v.query
	p := productsPage{T: v.tr.T, Query: q, Notice: v.notice, CartItems: v.cart.TotalItems()}

	current := map[string]string{
		"type":         q.Type,
		"price":        q.Price,
		"rating":       q.Rating,
		"availability": q.Availability,
		"promotion":    q.Promotion,
	}
	for _, f := range filterOptions {
		pf := productFilter{Field: f.field, Label: v.tr.T("products.filters." + f.field)}
		for _, val := range f.values {
			pf.Options = append(pf.Options, choice{Value: val, Label: v.tr.T("products.options." + val), Selected: current[f.field] == val})
		}
		p.Filters = append(p.Filters, pf)
	}
	sort := q.Sort
	if sort == "" {
		sort = catalog.SortNameAsc
	}
	for _, s := range sortOrders {
		p.Sorts = append(p.Sorts, choice{Value: s, Label: v.tr.T("products.sort." + s), Selected: s == sort})
	}

	for _, prod := range v.deps.Catalog.Find(q) {
		card := productCard{
			Product: prod,
			Price:   FormatPrice(prod.UnitPrice(1)),
			Stars:   strconv.FormatFloat(prod.Rating, 'f', 1, 64),
		}
		if prod.OnSale {
			card.BasePrice = FormatPrice(prod.Price)
		}
		if prod.BulkDiscount {
			card.BulkPrice = FormatPrice(prod.UnitPrice(catalog.BulkQuantity))
		}
		p.Products = append(p.Products, card)
	}
	return p
}

func (v *ProductsView) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		return pageTemplates.ExecuteTemplate(w, "products", v.page())
	})
}

const productsTemplate = `
{{define "products"}}
<div class="products-page" data-live-view="products">
  <h1>{{call .T "products.title"}}</h1>
  <p class="cart-link"><a href="/cart">{{call .T "products.cart" .CartItems}}</a></p>
  {{if .Notice}}<p class="notice" role="status">{{.Notice}} <button type="button" class="link" lv-click="dismiss">×</button></p>{{end}}
  <div class="filters">
    <input type="search" name="q" value="{{.Query.Search}}" placeholder="{{call .T "products.search"}}" lv-change="search">
    {{range .Filters}}
    <label>{{.Label}}
      <select name="{{.Field}}" lv-change="filter" lv-value-field="{{.Field}}">
        <option value="tous">{{call $.T "products.options.tous"}}</option>
        {{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
      </select>
    </label>
    {{end}}
    <label>{{call .T "products.sort_by"}}
      <select name="sort" lv-change="sort">
        {{range .Sorts}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}
      </select>
    </label>
    <label class="checkbox"><input type="checkbox"{{if .Query.BulkOnly}} checked{{end}} lv-click="bulk_only"> {{call .T "products.bulk_only"}}</label>
    <button type="button" class="link" lv-click="reset">{{call .T "products.reset"}}</button>
  </div>
  <p class="count">{{call .T "products.count" (len .Products)}}</p>
  {{if .Products}}
  <ul class="product-grid">
    {{range .Products}}
    <li id="product-{{.ID}}" class="product{{if not .InStock}} out-of-stock{{end}}">
      <img src="{{.Image}}" alt="{{.Name}}" width="160">
      {{if .OnSale}}<span class="badge sale">{{call $.T "products.on_sale"}}</span>{{end}}
      <h2 class="title">{{.Name}}</h2>
      <p class="subtitle">{{.Subtitle}}</p>
      <p class="rating">★ {{.Stars}}</p>
      <p class="price">{{if .BasePrice}}<s class="base-price">{{.BasePrice}}</s> {{end}}<span class="unit-price">{{.Price}}</span></p>
      {{if .BulkPrice}}<p class="bulk">{{call $.T "products.bulk" .BulkPrice}}</p>{{end}}
      {{if .InStock}}
      <button type="button" lv-click="add" lv-value-id="{{.ID}}" lv-value-qty="1">{{call $.T "cart.add"}}</button>
      {{else}}
      <button type="button" disabled>{{call $.T "products.out_of_stock"}}</button>
      {{end}}
    </li>
    {{end}}
  </ul>
  {{else}}
  <p class="empty">{{call .T "products.none"}}</p>
  {{end}}
</div>
{{end}}
`
