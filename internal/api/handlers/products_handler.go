package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodpulse/prodpulse/internal/api/response"
	"github.com/prodpulse/prodpulse/internal/models"
	"github.com/prodpulse/prodpulse/internal/pulseerrors"
	"github.com/prodpulse/prodpulse/internal/repository"
)

// ProductsStore is the product repository slice the handler needs.
type ProductsStore interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
}

// ProductsHandler handles product admin requests.
type ProductsHandler struct {
	store ProductsStore
}

// NewProductsHandler creates a products handler.
func NewProductsHandler(store ProductsStore) *ProductsHandler {
	return &ProductsHandler{store: store}
}

// CreateProductRequest is the body for POST /v1/products.
type CreateProductRequest struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// Create handles POST /v1/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.RespondBadRequest(w, "name is required")

		return
	}

	product := &models.Product{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: repository.NormalizeProductName(name),
		Aliases:        req.Aliases,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.store.Create(r.Context(), product); err != nil {
		if errors.Is(err, pulseerrors.ErrValidation) {
			response.RespondConflict(w, "A product with this name already exists")

			return
		}

		response.RespondInternalServerError(w, "Creating product failed")

		return
	}

	response.RespondJSON(w, http.StatusCreated, product)
}

// Get handles GET /v1/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondBadRequest(w, "Invalid product ID")

		return
	}

	product, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pulseerrors.ErrNotFound) {
			response.RespondNotFound(w, "Product not found")

			return
		}

		response.RespondInternalServerError(w, "Getting product failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, product)
}

// List handles GET /v1/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		response.RespondInternalServerError(w, "Listing products failed")

		return
	}

	response.RespondJSON(w, http.StatusOK, products)
}
