// Package models maps the invoicing tables to gorm structs. Each model
// converts to and from its domain type, so the domain packages never import
// gorm.
//
// Sellers, buyers, invoices and their items are seller owned. The VAT
// identity cache and plan overrides are shared across sellers.
package models
