// Package datastore persists analysis records and user accounts behind a
// single interface with SQLite and MySQL implementations.
package datastore

import "context"

// Interface abstracts the relational store. Every read is scoped to the
// owning user; reaching another owner's record yields a forbidden error
// rather than silently returning nothing.
type Interface interface {
	Open() error
	Close() error

	// Save stores a record and its detections in one transaction.
	Save(ctx context.Context, record *AnalysisRecord) error

	// Get fetches a single record with its detections. A missing record
	// yields a not-found error; a record owned by someone else yields a
	// forbidden error.
	Get(ctx context.Context, ownerID, id string) (*AnalysisRecord, error)

	// GetHistory returns the owner's records, newest first. limit <= 0
	// means no limit.
	GetHistory(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisRecord, error)

	// CountAnalyses returns how many records the owner has saved.
	CountAnalyses(ctx context.Context, ownerID string) (int64, error)

	// Delete removes a record and its detections, with the same ownership
	// rules as Get.
	Delete(ctx context.Context, ownerID, id string) error

	// Dashboard folds every record the owner has into summary statistics.
	Dashboard(ctx context.Context, ownerID string) (*DashboardStats, error)

	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)

	// ListUsers returns every account, oldest first. Admin surface only.
	ListUsers(ctx context.Context) ([]User, error)

	// ListAnalyses returns records across all owners, newest first.
	// Admin surface only; limit <= 0 means no limit.
	ListAnalyses(ctx context.Context, limit, offset int) ([]AnalysisRecord, error)
}

// Compile-time checks that both stores satisfy the interface.
var (
	_ Interface = (*SQLiteStore)(nil)
	_ Interface = (*MySQLStore)(nil)
)
