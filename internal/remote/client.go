// Package remote is the Shopify Admin GraphQL client used by the sync services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"catalogsync-api/internal/cache"
	"catalogsync-api/internal/metrics"
	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	locationCacheKey   = "shopify:first_location"
	defaultLocationTTL = time.Hour
	maxResponseBytes   = 4 << 20
)

// Config holds client settings.
type Config struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, <= 0 disables throttling
	RateBurst   int
	LocationTTL time.Duration
}

// Client talks to the Shopify Admin GraphQL endpoint. Every call is
// throttled and bounded by the configured timeout.
type Client struct {
	endpoint    string
	token       string
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	cache       cache.Cache
	locationTTL time.Duration
	log         *slog.Logger
}

// NewClient creates a client. c caches the first inventory location id; a nil
// httpClient uses a default one.
func NewClient(cfg Config, c cache.Cache, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.LocationTTL <= 0 {
		cfg.LocationTTL = defaultLocationTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		token:       cfg.AccessToken,
		timeout:     cfg.Timeout,
		httpClient:  httpClient,
		limiter:     limiter,
		cache:       c,
		locationTTL: cfg.LocationTTL,
		log:         obs.Logger.With("component", "remote"),
	}
}

// do posts one GraphQL document and decodes its data into out.
func (c *Client) do(ctx context.Context, op, query string, variables interface{}, out interface{}) (err error) {
	defer func() {
		metrics.RecordRemoteRequest(op, err == nil)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early, without ctx being done, when the next token
		// would arrive after the deadline. That is a timeout too.
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return model.NewRemoteError(op, fmt.Errorf("rate limiter: %w", err))
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return model.NewRemoteError(op, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.NewRemoteError(op, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error unwraps to context.DeadlineExceeded on timeout.
		return model.NewRemoteError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.NewRemoteError(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &model.RemoteError{
			Op:        op,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 200)),
		}
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return model.NewRemoteError(op, fmt.Errorf("failed to decode response: %w", err))
	}

	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		throttled := false
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
			if e.Extensions.Code == "THROTTLED" {
				throttled = true
			}
		}
		c.log.Error("graphql errors", "op", op, "errors", msgs)
		return &model.RemoteError{
			Op:        op,
			Retryable: throttled,
			Err:       fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; ")),
		}
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return model.NewRemoteError(op, errors.New("response has no data"))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return model.NewRemoteError(op, fmt.Errorf("failed to decode data: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// FetchByID returns the product with id, or nil when the platform has none.
func (c *Client) FetchByID(ctx context.Context, id string) (*model.ProductRecord, error) {
	var data productData
	if err := c.do(ctx, "fetch_product", queryProduct, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, nil
	}
	rec, err := data.Product.toRecord()
	if err != nil {
		return nil, model.NewRemoteError("fetch_product", err)
	}
	return rec, nil
}

// List returns one page of active products after cursor.
func (c *Client) List(ctx context.Context, pageSize int, cursor string) (*model.RemotePage, error) {
	vars := map[string]interface{}{
		"first":  pageSize,
		"filter": activeFilter,
		"after":  nil,
	}
	if cursor != "" {
		vars["after"] = cursor
	}

	var data productsData
	if err := c.do(ctx, "list_products", queryProducts, vars, &data); err != nil {
		return nil, err
	}

	page := &model.RemotePage{
		Items:       make([]model.ProductRecord, 0, len(data.Products.Edges)),
		HasNextPage: data.Products.PageInfo.HasNextPage,
	}
	if data.Products.PageInfo.EndCursor != nil {
		page.Cursor = *data.Products.PageInfo.EndCursor
	}
	for i := range data.Products.Edges {
		rec, err := data.Products.Edges[i].Node.toRecord()
		if err != nil {
			return nil, model.NewRemoteError("list_products", err)
		}
		page.Items = append(page.Items, *rec)
	}
	return page, nil
}

// firstLocation returns the id of the shop's first inventory location.
func (c *Client) firstLocation(ctx context.Context) (string, error) {
	load := func() ([]byte, error) {
		var data locationsData
		if err := c.do(ctx, "first_location", queryFirstLocation, nil, &data); err != nil {
			return nil, err
		}
		if len(data.Locations.Edges) == 0 || data.Locations.Edges[0].Node.ID == "" {
			return nil, model.NewRemoteError("first_location", errors.New("shop has no inventory location"))
		}
		return []byte(data.Locations.Edges[0].Node.ID), nil
	}

	if c.cache == nil {
		id, err := load()
		return string(id), err
	}
	id, err := c.cache.GetOrSet(ctx, locationCacheKey, c.locationTTL, load)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// Create creates a single-variant product with quantity stocked at the first
// location and returns it as re-fetched from the platform.
func (c *Client) Create(ctx context.Context, title string, price decimal.Decimal, description string, quantity int) (*model.ProductRecord, error) {
	locationID, err := c.firstLocation(ctx)
	if err != nil {
		return nil, err
	}

	input := map[string]interface{}{
		"title":           title,
		"descriptionHtml": description,
		"productOptions": []map[string]interface{}{{
			"name":   "Title",
			"values": []map[string]string{{"name": "Default Title"}},
		}},
		"variants": []map[string]interface{}{{
			"price": price.String(),
			"optionValues": []map[string]string{{
				"optionName": "Title",
				"name":       "Default Title",
			}},
			"inventoryItem": map[string]bool{"tracked": true},
			"inventoryQuantities": []map[string]interface{}{{
				"locationId": locationID,
				"name":       "available",
				"quantity":   quantity,
			}},
		}},
	}

	var data productSetData
	if err := c.do(ctx, "create_product", mutationProductSet, map[string]interface{}{"input": input}, &data); err != nil {
		return nil, err
	}
	if errs := data.ProductSet.UserErrors; len(errs) > 0 {
		return nil, model.NewRemoteError("create_product", fmt.Errorf("user errors: %s", joinUserErrors(errs)))
	}
	if data.ProductSet.Product == nil || data.ProductSet.Product.ID == "" {
		return nil, model.NewRemoteError("create_product", errEmptyID)
	}

	newID := data.ProductSet.Product.ID
	rec, err := c.FetchByID(ctx, newID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, model.NewRemoteError("create_product", fmt.Errorf("created product %s not found", newID))
	}
	c.log.Info("product created", "product_id", newID, "title", title)
	return rec, nil
}

// Update changes the title, description and price of an existing product.
// Only fields that differ are sent. It returns nil when the product does not
// exist remotely.
func (c *Client) Update(ctx context.Context, id, title, description string, price decimal.Decimal) (*model.ProductRecord, error) {
	current, err := c.FetchByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	if (title != "" && title != current.Title) || description != current.Description {
		input := map[string]interface{}{
			"id":              current.ID,
			"title":           title,
			"descriptionHtml": description,
		}
		if title == "" {
			input["title"] = current.Title
		}
		var data productUpdateData
		if err := c.do(ctx, "update_product", mutationProductUpdate, map[string]interface{}{"input": input}, &data); err != nil {
			return nil, err
		}
		if errs := data.ProductUpdate.UserErrors; len(errs) > 0 {
			return nil, model.NewRemoteError("update_product", fmt.Errorf("user errors: %s", joinUserErrors(errs)))
		}
	}

	if !price.Equal(current.Price) {
		if current.VariantID == nil {
			return nil, model.NewRemoteError("update_variant", fmt.Errorf("%s: %w", id, errMissingVariant))
		}
		vars := map[string]interface{}{
			"productId": current.ID,
			"variants": []map[string]string{{
				"id":    *current.VariantID,
				"price": price.String(),
			}},
		}
		var data variantsBulkUpdateData
		if err := c.do(ctx, "update_variant", mutationVariantsBulkUpdate, vars, &data); err != nil {
			return nil, err
		}
		if errs := data.ProductVariantsBulkUpdate.UserErrors; len(errs) > 0 {
			return nil, model.NewRemoteError("update_variant", fmt.Errorf("user errors: %s", joinUserErrors(errs)))
		}
	}

	return c.FetchByID(ctx, id)
}

// Delete removes the product. It returns false when the platform reports
// userErrors for the deletion.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var data productDeleteData
	vars := map[string]interface{}{"input": map[string]string{"id": id}}
	if err := c.do(ctx, "delete_product", mutationProductDelete, vars, &data); err != nil {
		return false, err
	}
	if errs := data.ProductDelete.UserErrors; len(errs) > 0 {
		c.log.Error("delete rejected", "product_id", id, "errors", joinUserErrors(errs))
		return false, nil
	}
	return true, nil
}
