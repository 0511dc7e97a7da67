// Package models holds the gorm table mappings for the lease billing
// ledger. Domain types in internal/domain stay free of ORM tags; these
// models own the column definitions and the converters in both
// directions.
//
// The ledger is one flat charge table: invoices and credit notes are
// groupings of lease_charges rows that share an invoice_id, with VAT and
// credits stored as synthetic rows. ChargeModel therefore carries every
// column any row kind can use, and the mappers decide which apply.
package models
