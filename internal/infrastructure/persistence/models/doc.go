// Package models contains GORM persistence models that map to database tables.
// Domain entities carry no ORM tags; each model converts to and from its
// entity with ToDomain and FromDomain.
//
// Tables:
// - accounts: administrator and vendor accounts
// - products, stock_movements: the tenant-scoped catalog and its stock journal
// - invoices, invoice_items, ledger_sequences: the append-only ledger
package models
