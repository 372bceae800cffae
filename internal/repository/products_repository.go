package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
)

const uniqueViolationCode = "23505"

// ProductsRepository handles data access for tracked products. The pipeline
// only reads products; writes come from admin operations.
type ProductsRepository struct {
	db *pgxpool.Pool
}

// NewProductsRepository creates a new products repository.
func NewProductsRepository(db *pgxpool.Pool) *ProductsRepository {
	return &ProductsRepository{db: db}
}

// NormalizeProductName lowercases and collapses inner whitespace; uniqueness
// is enforced on the normalized form.
func NormalizeProductName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Create inserts a product. Returns a ValidationError when the normalized
// name already exists.
func (r *ProductsRepository) Create(ctx context.Context, product *models.Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, normalized_name, aliases, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		product.ID, product.Name, product.NormalizedName, product.Aliases, product.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return pulseerrors.NewValidationError("name", "a product with this name already exists")
		}

		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

// GetByID retrieves a single product.
func (r *ProductsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product

	err := r.db.QueryRow(ctx, `
		SELECT id, name, normalized_name, aliases, created_at
		FROM products
		WHERE id = $1`, id,
	).Scan(&product.ID, &product.Name, &product.NormalizedName, &product.Aliases, &product.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pulseerrors.NewNotFoundError("product", "product not found")
		}

		return nil, fmt.Errorf("get product: %w", err)
	}

	return &product, nil
}

// List returns all products ordered by creation time.
func (r *ProductsRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, normalized_name, aliases, created_at
		FROM products
		ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}

	for rows.Next() {
		var product models.Product

		err := rows.Scan(&product.ID, &product.Name, &product.NormalizedName, &product.Aliases, &product.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}

	return products, nil
}
