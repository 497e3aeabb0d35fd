// Package models holds the GORM rows behind the freight aggregates and the
// mapping to and from their domain types.
//
// The SQL files under migrations/ own the PostgreSQL schema. The tags here
// mirror it closely enough for AutoMigrate to build an equivalent SQLite
// schema in tests, including the partial unique index that keeps one invoice
// in force per shipment.
//
//   - tracking.go: shipments, the OTIF event log and delay annotations
//   - settlement.go: invoices and payment attempts
//   - outbox.go: domain events awaiting delivery
//   - base.go: columns shared by every aggregate row
package models
