package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// ContextRepository resolves the listing or RFQ a chat room is tied to.
type ContextRepository interface {
	ResolveListing(ctx context.Context, productID string) (*domain.ListingContext, error)
	ResolveRfq(ctx context.Context, rfqID string) (*domain.RfqContext, error)
}

type contextRepository struct {
	pool *pgxpool.Pool
}

// NewContextRepository builds repository.
func NewContextRepository(pool *pgxpool.Pool) ContextRepository {
	return &contextRepository{pool: pool}
}

func (r *contextRepository) ResolveListing(ctx context.Context, productID string) (*domain.ListingContext, error) {
	const query = `SELECT id, seller_id, title FROM products WHERE id=$1`
	var listing domain.ListingContext
	if err := r.pool.QueryRow(ctx, query, productID).Scan(
		&listing.ProductID,
		&listing.SellerID,
		&listing.Title,
	); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *contextRepository) ResolveRfq(ctx context.Context, rfqID string) (*domain.RfqContext, error) {
	const query = `
        SELECT r.id, r.product_id, COALESCE(r.seller_id, p.seller_id), r.buyer_id, r.title
        FROM rfqs r LEFT JOIN products p ON p.id = r.product_id
        WHERE r.id=$1`
	var (
		rfq       domain.RfqContext
		productID *string
		sellerID  *string
		buyerID   *string
	)
	if err := r.pool.QueryRow(ctx, query, rfqID).Scan(
		&rfq.RfqID,
		&productID,
		&sellerID,
		&buyerID,
		&rfq.Title,
	); err != nil {
		return nil, err
	}
	if productID != nil {
		rfq.ProductID = *productID
	}
	if sellerID != nil {
		rfq.SellerID = *sellerID
	}
	if buyerID != nil {
		rfq.BuyerID = *buyerID
	}
	return &rfq, nil
}
