// Package catalog resolves client-supplied cart lines against the
// authoritative item and campaign catalog. The client payload is never
// trusted for price or stock; every figure is re-read here.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrItemUnavailable is returned when the referenced item or campaign is
// missing, inactive, or outside its active window.
var ErrItemUnavailable = errors.New("item unavailable")

// OutOfStockError indicates the requested quantity exceeds available stock
// for a stock-tracked module.
type OutOfStockError struct {
	ItemName string
}

func (e *OutOfStockError) Error() string {
	return "out of stock: " + e.ItemName
}

// QuantityLimitError indicates the per-item maximum cart quantity was exceeded.
type QuantityLimitError struct {
	ItemName string
	Limit    int64
}

func (e *QuantityLimitError) Error() string {
	return "maximum cart quantity exceeded for " + e.ItemName
}

// Variation is a priced option of an item. PriceDelta is added to the base
// price when the variation is selected. Stock, when non-nil, overrides the
// item-level stock for that variation.
type Variation struct {
	Type       string          `json:"type"`
	PriceDelta decimal.Decimal `json:"price"`
	Stock      *int64          `json:"stock,omitempty"`
}

// AddOn is a per-line extra with its own unit price.
type AddOn struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is a catalog entry: either a plain item or a time-boxed campaign.
type Item struct {
	ID                  int64
	StoreID             int64
	ModuleID            int64
	Name                string
	Price               decimal.Decimal
	Tax                 decimal.Decimal
	Discount            decimal.Decimal
	DiscountType        string
	Stock               int64
	MaximumCartQuantity int64
	Variations          []Variation
	Campaign            bool
	// StockTracked reflects the owning module's stock policy.
	StockTracked bool
}

// Repository provides read access to the catalog. Implementations return
// ErrItemUnavailable for missing, inactive, or expired entries.
type Repository interface {
	ItemByID(ctx context.Context, id int64) (*Item, error)
	CampaignByID(ctx context.Context, id int64) (*Item, error)
	AddOnsByIDs(ctx context.Context, ids []int64) ([]AddOn, error)
}

// CartLine is one client-supplied cart entry. Exactly one of ItemID and
// CampaignID must be set.
type CartLine struct {
	ItemID          int64
	CampaignID      int64
	Quantity        int64
	Variation       []string
	AddOnIDs        []int64
	AddOnQuantities []int64
}

// ResolvedAddOn is an add-on selection priced at resolution time.
type ResolvedAddOn struct {
	AddOn    AddOn `json:"add_on"`
	Quantity int64 `json:"quantity"`
}

// ResolvedLine is a cart line with authoritative price, stock, and add-on
// figures attached.
type ResolvedLine struct {
	Line      CartLine
	Item      Item
	UnitPrice decimal.Decimal
	Stock     int64
	// VariationType is the selected variation, empty when none applies.
	// Stock adjustments use it to target per-variation stock.
	VariationType string
	Variations    []Variation
	AddOns        []ResolvedAddOn
	AddOnTotal    decimal.Decimal
}

// Resolver resolves cart lines through the catalog repository. Resolution is
// read-only; stock is mutated only by the placement transaction.
type Resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the authoritative pricing for one cart line. It fails with
// ErrItemUnavailable, *OutOfStockError, or *QuantityLimitError before any
// row is written.
func (r *Resolver) Resolve(ctx context.Context, line CartLine) (*ResolvedLine, error) {
	item, err := r.lookup(ctx, line)
	if err != nil {
		return nil, err
	}

	if !item.Campaign && item.MaximumCartQuantity > 0 && line.Quantity > item.MaximumCartQuantity {
		return nil, &QuantityLimitError{ItemName: item.Name, Limit: item.MaximumCartQuantity}
	}

	unitPrice := item.Price
	stock := item.Stock
	variationType := ""
	var selected []Variation

	if len(item.Variations) > 0 && len(line.Variation) > 0 {
		for _, v := range item.Variations {
			if v.Type == line.Variation[0] {
				unitPrice = item.Price.Add(v.PriceDelta)
				if v.Stock != nil {
					stock = *v.Stock
				}
				variationType = v.Type
				selected = append(selected, v)
				break
			}
		}
	}

	if item.StockTracked && line.Quantity > stock {
		return nil, &OutOfStockError{ItemName: item.Name}
	}

	addons, addonTotal, err := r.resolveAddOns(ctx, line)
	if err != nil {
		return nil, err
	}

	return &ResolvedLine{
		Line:          line,
		Item:          *item,
		UnitPrice:     unitPrice,
		Stock:         stock,
		VariationType: variationType,
		Variations:    selected,
		AddOns:        addons,
		AddOnTotal:    addonTotal,
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, line CartLine) (*Item, error) {
	if line.CampaignID != 0 {
		item, err := r.repo.CampaignByID(ctx, line.CampaignID)
		if err != nil {
			return nil, errors.Wrapf(err, "campaign %d", line.CampaignID)
		}
		return item, nil
	}

	item, err := r.repo.ItemByID(ctx, line.ItemID)
	if err != nil {
		return nil, errors.Wrapf(err, "item %d", line.ItemID)
	}
	return item, nil
}

func (r *Resolver) resolveAddOns(ctx context.Context, line CartLine) ([]ResolvedAddOn, decimal.Decimal, error) {
	if len(line.AddOnIDs) == 0 {
		return nil, decimal.Zero, nil
	}

	fetched, err := r.repo.AddOnsByIDs(ctx, line.AddOnIDs)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "add-ons")
	}

	byID := make(map[int64]AddOn, len(fetched))
	for _, a := range fetched {
		byID[a.ID] = a
	}

	total := decimal.Zero
	resolved := make([]ResolvedAddOn, 0, len(line.AddOnIDs))
	for i, id := range line.AddOnIDs {
		a, ok := byID[id]
		if !ok {
			continue
		}
		qty := int64(1)
		if i < len(line.AddOnQuantities) {
			qty = line.AddOnQuantities[i]
		}
		if qty <= 0 {
			continue
		}
		resolved = append(resolved, ResolvedAddOn{AddOn: a, Quantity: qty})
		total = total.Add(a.Price.Mul(decimal.NewFromInt(qty)))
	}

	return resolved, total, nil
}
