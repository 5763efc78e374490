package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"catalogsync-api/internal/service"
	"catalogsync-api/pkg/apierror"
	"catalogsync-api/pkg/response"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

const (
	msgDeleteOK     = "Product successfully deleted."
	msgDeleteFailed = "Error while deleting the product."
)

// ProductHandler handles product queries, lifecycle and sync requests.
type ProductHandler struct {
	sync     *service.SyncService
	products *service.ProductService
	queries  *service.QueryService
}

// NewProductHandler creates a new product handler.
func NewProductHandler(sync *service.SyncService, products *service.ProductService, queries *service.QueryService) *ProductHandler {
	return &ProductHandler{sync: sync, products: products, queries: queries}
}

// CreateProductRequest is the request body for POST /api/v1/products.
type CreateProductRequest struct {
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
}

// UpdateProductRequest is the request body for PUT /api/v1/products/{id}.
type UpdateProductRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// BulkSyncRequest is the request body for POST /api/v1/products/bulk-sync.
type BulkSyncRequest struct {
	ProductIDs []string `json:"productIds"`
}

// DeleteResponse reports the outcome of a deletion.
type DeleteResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.BadRequest("Invalid JSON body")
	}
	return nil
}

// pageParams reads perPage and page from the query string. Missing values
// are left at zero for the service defaults.
func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	perPage, page := 0, 0
	if v := q.Get("perPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, apierror.ValidationError("perPage must be an integer",
				apierror.FieldError{Field: "perPage", Message: "must be an integer"})
		}
		perPage = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, apierror.ValidationError("page must be an integer",
				apierror.FieldError{Field: "page", Message: "must be an integer"})
		}
		page = n
	}
	return perPage, page, nil
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	perPage, page, err := pageParams(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.queries.AllProducts(r.Context(), perPage, page)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, result)
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	rec, err := h.queries.Product(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, rec)
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.products.Create(r.Context(), service.CreateInput{
		Title:       req.Title,
		Price:       req.Price,
		Description: req.Description,
		Quantity:    req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, result)
}

// Update handles PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req UpdateProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	result, err := h.products.Update(r.Context(), id, service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, result)
}

// Delete handles DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	ok, err := h.products.DeleteEverywhere(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, deleteResponse(ok))
}

// DeleteLocal handles DELETE /api/v1/products/{id}/local
func (h *ProductHandler) DeleteLocal(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	ok, err := h.products.DeleteLocalOnly(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, deleteResponse(ok))
}

func deleteResponse(ok bool) DeleteResponse {
	if ok {
		return DeleteResponse{Status: true, Message: msgDeleteOK}
	}
	return DeleteResponse{Status: false, Message: msgDeleteFailed}
}

// Sync handles POST /api/v1/products/{id}/sync
func (h *ProductHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	out, err := h.sync.SyncOne(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, out)
}

// Push handles POST /api/v1/products/{id}/push
func (h *ProductHandler) Push(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.sync.SyncLocalToRemote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, result)
}

// SyncAll handles POST /api/v1/products/sync-all
func (h *ProductHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	out, err := h.sync.SyncAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, out)
}

// BulkSync handles POST /api/v1/products/bulk-sync
func (h *ProductHandler) BulkSync(w http.ResponseWriter, r *http.Request) {
	var req BulkSyncRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.ProductIDs == nil {
		response.Error(w, apierror.ValidationError("productIds is required",
			apierror.FieldError{Field: "productIds", Message: "is required"}))
		return
	}
	response.OK(w, h.sync.BulkSync(r.Context(), req.ProductIDs))
}
