package catalog

import (
	"context"
)

// RepositoryPort abstracts product reads for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Product, error)
	GetByBarcode(ctx context.Context, orgID int64, barcode string) (Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
	SpecialPriceFor(ctx context.Context, customerID, productID int64) (SpecialPrice, bool, error)
	List(ctx context.Context, orgID int64, limit, offset int) ([]Product, error)
}

// Service exposes catalog reads to the HTTP layer and the engines.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Lookup resolves a product by barcode for the POS scanner flow.
func (s *Service) Lookup(ctx context.Context, orgID int64, barcode string) (Product, error) {
	return s.repo.GetByBarcode(ctx, orgID, barcode)
}

// Resolve loads the products referenced by a cart. Missing ids surface as
// ErrNotFound so checkout can reject the whole cart.
func (s *Service) Resolve(ctx context.Context, ids []int64) (map[int64]Product, error) {
	products, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, ErrNotFound
		}
	}
	return products, nil
}

// SpecialPriceFor returns a customer's override price for a product, if any.
func (s *Service) SpecialPriceFor(ctx context.Context, customerID, productID int64) (SpecialPrice, bool, error) {
	if customerID == 0 {
		return SpecialPrice{}, false, nil
	}
	return s.repo.SpecialPriceFor(ctx, customerID, productID)
}

// List returns active products.
func (s *Service) List(ctx context.Context, orgID int64, limit, offset int) ([]Product, error) {
	return s.repo.List(ctx, orgID, limit, offset)
}
