package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads products from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, org_id, sku, barcode, name, cost_price, selling_price, tax_rate, reorder_point, reorder_qty, tracks_expiry, expiry_alert_days, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Barcode, &p.Name, &p.CostPrice, &p.SellingPrice, &p.TaxRate, &p.ReorderPoint, &p.ReorderQty, &p.TracksExpiry, &p.ExpiryAlertDays, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Get fetches one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetByBarcode fetches one product by barcode within an organisation.
func (r *Repository) GetByBarcode(ctx context.Context, orgID int64, barcode string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE org_id=$1 AND barcode=$2`, orgID, barcode))
}

// GetMany fetches products by id, keyed for cart resolution.
func (r *Repository) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[int64]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

// SpecialPriceFor returns a customer's price override for a product, if any.
func (r *Repository) SpecialPriceFor(ctx context.Context, customerID, productID int64) (SpecialPrice, bool, error) {
	var sp SpecialPrice
	err := r.pool.QueryRow(ctx, `SELECT customer_id, product_id, unit_price FROM customer_special_prices WHERE customer_id=$1 AND product_id=$2`, customerID, productID).
		Scan(&sp.CustomerID, &sp.ProductID, &sp.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SpecialPrice{}, false, nil
		}
		return SpecialPrice{}, false, err
	}
	return sp, true, nil
}

// List returns active products for an organisation.
func (r *Repository) List(ctx context.Context, orgID int64, limit, offset int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE org_id=$1 AND is_active ORDER BY name ASC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
