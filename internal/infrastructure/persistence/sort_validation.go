package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "ASC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "DESC" {
		return "DESC"
	}
	return "ASC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ChargeSortFields contains allowed sort fields for lease charges
var ChargeSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"period_key":     true,
	"type":           true,
	"status":         true,
	"total_amount":   true,
	"invoice_number": true,
}

// PaymentSortFields contains allowed sort fields for lease payments
var PaymentSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"amount":      true,
	"method":      true,
	"status":      true,
	"received_at": true,
}
