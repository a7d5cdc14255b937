// Package triage is the business boundary for LifeLink's alert lifecycle.
// It defines the Service (ingestion and triage updates), the Store interface
// (persistence with an atomic status transition), the solved-timestamp rule,
// and the pure aggregations the dashboard and analytics views are built from.
package triage
