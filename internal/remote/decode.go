package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"catalogsync-api/internal/model"

	"github.com/shopspring/decimal"
)

var (
	errMissingVariant = errors.New("product has no variant")
	errEmptyID        = errors.New("product id is empty")
)

type graphQLRequest struct {
	Query     string      `json:"query"`
	Variables interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func joinUserErrors(errs []userError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			msgs = append(msgs, strings.Join(e.Field, ".")+": "+e.Message)
			continue
		}
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

type variantNode struct {
	ID                string `json:"id"`
	Price             string `json:"price"`
	InventoryQuantity *int   `json:"inventoryQuantity"`
	InventoryItem     *struct {
		ID string `json:"id"`
	} `json:"inventoryItem"`
}

type productNode struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	DescriptionHTML string `json:"descriptionHtml"`
	Variants        struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// toRecord maps a product node onto a ProductRecord. Only the first variant
// is considered.
func (n *productNode) toRecord() (*model.ProductRecord, error) {
	if n.ID == "" {
		return nil, errEmptyID
	}
	if len(n.Variants.Edges) == 0 {
		return nil, fmt.Errorf("%s: %w", n.ID, errMissingVariant)
	}
	v := n.Variants.Edges[0].Node

	price, err := decimal.NewFromString(v.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid price %q: %w", n.ID, v.Price, err)
	}

	rec := &model.ProductRecord{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.DescriptionHTML,
		Price:       price,
		VariantID:   model.StringPtr(v.ID),
	}
	if v.InventoryQuantity != nil {
		rec.InventoryQuantity = *v.InventoryQuantity
	}
	if v.InventoryItem != nil {
		rec.InventoryItemID = model.StringPtr(v.InventoryItem.ID)
	}
	return rec, nil
}

type productData struct {
	Product *productNode `json:"product"`
}

type productsData struct {
	Products struct {
		Edges []struct {
			Node productNode `json:"node"`
		} `json:"edges"`
		PageInfo struct {
			HasNextPage bool    `json:"hasNextPage"`
			EndCursor   *string `json:"endCursor"`
		} `json:"pageInfo"`
	} `json:"products"`
}

type locationsData struct {
	Locations struct {
		Edges []struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"locations"`
}

type productSetData struct {
	ProductSet struct {
		Product *struct {
			ID string `json:"id"`
		} `json:"product"`
		UserErrors []userError `json:"userErrors"`
	} `json:"productSet"`
}

type productUpdateData struct {
	ProductUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productUpdate"`
}

type variantsBulkUpdateData struct {
	ProductVariantsBulkUpdate struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"productVariantsBulkUpdate"`
}

type productDeleteData struct {
	ProductDelete struct {
		DeletedProductID *string     `json:"deletedProductId"`
		UserErrors       []userError `json:"userErrors"`
	} `json:"productDelete"`
}
