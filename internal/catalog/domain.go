// Package catalog exposes the product read model used by the transactional
// core. Catalog management (create/update screens) lives outside this core;
// checkout, receiving and returns only read price, tax and expiry settings.
package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// Product is the catalog record referenced by sales and receiving.
type Product struct {
	ID              int64           `json:"id"`
	OrgID           int64           `json:"org_id"`
	SKU             string          `json:"sku"`
	Barcode         string          `json:"barcode"`
	Name            string          `json:"name"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"` // percent, e.g. 7.50
	ReorderPoint    int64           `json:"reorder_point"`
	ReorderQty      int64           `json:"reorder_qty"`
	TracksExpiry    bool            `json:"tracks_expiry"`
	ExpiryAlertDays int             `json:"expiry_alert_days"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SpecialPrice is a per-customer price override applied at sale time when
// present. When absent the line keeps its explicit unit price.
type SpecialPrice struct {
	CustomerID int64
	ProductID  int64
	UnitPrice  decimal.Decimal
}

// ErrNotFound indicates a missing product.
var ErrNotFound = fmt.Errorf("catalog: product %w", shared.ErrNotFound)
