package service

import (
	"strings"

	"catalogsync-api/internal/model"
)

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return model.NewValidationError("title", "Title is required")
	}
	if in.Price.IsNegative() {
		return model.NewValidationError("price", "Price must not be negative")
	}
	if in.Quantity < 0 {
		return model.NewValidationError("quantity", "Quantity must not be negative")
	}
	return nil
}

func validateUpdate(in UpdateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return model.NewValidationError("title", "Product title is required")
	}
	if in.Price.IsNegative() {
		return model.NewValidationError("price", "Product price must not be negative")
	}
	return nil
}
