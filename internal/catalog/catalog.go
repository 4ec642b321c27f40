// Package catalog holds the dairy products offered to customers and the
// pricing rules applied when they go into a cart.
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seasky/seasky-web/internal/cart"
)

var (
	ErrUnknownProduct = errors.New("catalog: unknown product")
	ErrOutOfStock     = errors.New("catalog: product out of stock")
)

// Product types.
const (
	TypeMilk   = "lait"
	TypeYogurt = "yaourt"
	TypeCheese = "fromage"
	TypeButter = "beurre"
	TypeCream  = "creme"
)

// Discounts: on-sale products cost 20% less, and wholesale quantities of
// bulk products get another 20% off.
const (
	SaleRate     = 0.8
	BulkRate     = 0.8
	BulkQuantity = 30
)

// Product is one catalog entry. Prices are in BIF.
type Product struct {
	ID           int
	Name         string
	Subtitle     string
	Price        float64
	Image        string
	Type         string
	Rating       float64
	InStock      bool
	OnSale       bool
	BulkDiscount bool
}

// UnitPrice is the rounded price of one unit when qty units are bought.
func (p Product) UnitPrice(qty int) float64 {
	price := p.Price
	if p.OnSale {
		price *= SaleRate
	}
	if p.BulkDiscount && qty >= BulkQuantity {
		price *= BulkRate
	}
	return math.Round(price)
}

// Products is the product list shown on the catalog page.
var Products = []Product{
	{ID: 1, Name: "Lait Frais Entier", Subtitle: "Lait cru réfrigéré, produit localement", Price: 1500, Image: "/images/seasky1.webp", Type: TypeMilk, Rating: 4.5, InStock: true, OnSale: true, BulkDiscount: true},
	{ID: 2, Name: "Lait Pasteurisé", Subtitle: "Pasteurisation naturelle, sans conservateurs", Price: 1800, Image: "/images/seasky2.webp", Type: TypeMilk, Rating: 4.2, InStock: true, BulkDiscount: true},
	{ID: 3, Name: "Yaourt Nature", Subtitle: "Yaourt crémeux, fermentation naturelle", Price: 1200, Image: "/images/seasky3.webp", Type: TypeYogurt, Rating: 4.7, InStock: true, OnSale: true, BulkDiscount: true},
	{ID: 4, Name: "Fromage Blanc", Subtitle: "Fromage frais, texture onctueuse", Price: 2500, Image: "/images/seasky11.webp", Type: TypeCheese, Rating: 4.0, InStock: true},
	{ID: 5, Name: "Beurre Traditionnel", Subtitle: "Beurre 100% naturel, fait main", Price: 3000, Image: "/images/seasky5.webp", Type: TypeButter, Rating: 4.8, OnSale: true, BulkDiscount: true},
	{ID: 6, Name: "Lait Caillé", Subtitle: "Spécialité locale, goût authentique", Price: 1000, Image: "/images/seasky9.webp", Type: TypeMilk, Rating: 3.8, InStock: true},
	{ID: 7, Name: "Crème Fraîche", Subtitle: "Crème épaisse, parfaite pour cuisine", Price: 2200, Image: "/images/seasky7.webp", Type: TypeCream, Rating: 4.3, InStock: true, OnSale: true, BulkDiscount: true},
	{ID: 8, Name: "Lait en Poudre", Subtitle: "Pratique pour conservation longue durée", Price: 5000, Image: "/images/seasky8.webp", Type: TypeMilk, Rating: 4.1, InStock: true, BulkDiscount: true},
}

// Catalog looks products up and turns them into cart lines.
type Catalog struct {
	products []Product
}

// New creates a catalog. A nil list means Products.
func New(products []Product) *Catalog {
	if products == nil {
		products = Products
	}
	return &Catalog{products: slices.Clone(products)}
}

// All returns the products in catalog order.
func (c *Catalog) All() []Product {
	return slices.Clone(c.products)
}

// Lookup finds a product by ID.
func (c *Catalog) Lookup(id int) (Product, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// AddTo puts qty units of product id into the cart at the discounted unit
// price.
func (c *Catalog) AddTo(ct *cart.Cart, id, qty int) (Product, error) {
	p, ok := c.Lookup(id)
	if !ok {
		return Product{}, fmt.Errorf("%w: %d", ErrUnknownProduct, id)
	}
	if !p.InStock {
		return p, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}
	ct.AddToCart(p.ID, p.Name, p.UnitPrice(qty), p.Image, qty)
	return p, nil
}

// Filter values. "tous" or empty disables a criterion.
const (
	All = "tous"

	PriceUnder2000  = "moins-2000"
	Price2000To3000 = "2000-3000"
	PriceOver3000   = "plus-3000"

	Rating4Plus  = "4-etoiles"
	RatingBelow4 = "3-etoiles"

	InStock    = "en-stock"
	OutOfStock = "hors-stock"

	OnSale = "en-promotion"
)

// Sort orders.
const (
	SortNameAsc    = "nom-asc"
	SortNameDesc   = "nom-desc"
	SortPriceAsc   = "prix-asc"
	SortPriceDesc  = "prix-desc"
	SortRatingDesc = "rating-desc"
)

// Query selects and orders products.
type Query struct {
	Search       string
	Type         string
	Price        string
	Rating       string
	Availability string
	Promotion    string
	BulkOnly     bool
	Sort         string
}

func set(v string) bool { return v != "" && v != All }

// Match reports whether p passes every criterion of q.
func (q Query) Match(p Product) bool {
	if s := Fold(q.Search); s != "" && !strings.Contains(Fold(p.Name), s) && !strings.Contains(Fold(p.Subtitle), s) {
		return false
	}
	if set(q.Type) && p.Type != q.Type {
		return false
	}
	switch q.Price {
	case PriceUnder2000:
		if p.Price >= 2000 {
			return false
		}
	case Price2000To3000:
		if p.Price < 2000 || p.Price > 3000 {
			return false
		}
	case PriceOver3000:
		if p.Price <= 3000 {
			return false
		}
	}
	switch q.Rating {
	case Rating4Plus:
		if p.Rating < 4 {
			return false
		}
	case RatingBelow4:
		if p.Rating >= 4 {
			return false
		}
	}
	switch q.Availability {
	case InStock:
		if !p.InStock {
			return false
		}
	case OutOfStock:
		if p.InStock {
			return false
		}
	}
	if q.Promotion == OnSale && !p.OnSale {
		return false
	}
	return !q.BulkOnly || p.BulkDiscount
}

// Find returns the products matching q in q.Sort order. Names compare
// with French collation.
func (c *Catalog) Find(q Query) []Product {
	var out []Product
	for _, p := range c.products {
		if q.Match(p) {
			out = append(out, p)
		}
	}

	col := collate.New(language.French, collate.IgnoreCase)
	slices.SortStableFunc(out, func(a, b Product) int {
		switch q.Sort {
		case SortPriceAsc:
			return cmp.Compare(a.Price, b.Price)
		case SortPriceDesc:
			return cmp.Compare(b.Price, a.Price)
		case SortNameDesc:
			return col.CompareString(b.Name, a.Name)
		case SortRatingDesc:
			return cmp.Compare(b.Rating, a.Rating)
		case "", SortNameAsc:
			return col.CompareString(a.Name, b.Name)
		}
		return 0
	})
	return out
}

// Fold lowercases s and strips accents so "creme" finds "Crème".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}
