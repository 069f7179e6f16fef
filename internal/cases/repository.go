package cases

import "context"

// Filter is an exact-match conjunction over case fields. Zero values mean
// "any"; the Active and Deleted pointers distinguish unset from false.
type Filter struct {
	CaseID    int64
	SubjectID string
	Kind      Kind
	ChannelID string
	Active    *bool
	Deleted   *bool
}

// Patch lists the mutable case fields. Nil pointers leave the field alone.
// CreatedAt, ID, subject, moderator and kind are immutable after insertion.
type Patch struct {
	Reason   *string
	Duration *int64
	Received *bool
	Active   *bool
	Deleted  *bool
}

// Repository is the persistence contract for case records.
type Repository interface {
	// NextCaseID returns the next free case id: highest existing id plus
	// one, or 1 for an empty collection.
	NextCaseID(ctx context.Context) (int64, error)

	// InsertCase stores a new record.
	InsertCase(ctx context.Context, record Record) error

	// CaseByID returns the record with the given id or ErrCaseNotFound.
	CaseByID(ctx context.Context, id int64) (Record, error)

	// SearchCases returns all records matching the filter in store order.
	// No match yields an empty slice and a nil error.
	SearchCases(ctx context.Context, filter Filter) ([]Record, error)

	// UpdateCase applies the patch to the first record matching the filter
	// and returns the post-update record, or ErrCaseNotFound when nothing
	// matched.
	UpdateCase(ctx context.Context, filter Filter, patch Patch) (Record, error)
}

// BoolPtr is a convenience for building filters and patches.
func BoolPtr(v bool) *bool { return &v }

// StringPtr is a convenience for building patches.
func StringPtr(v string) *string { return &v }

// Int64Ptr is a convenience for building patches.
func Int64Ptr(v int64) *int64 { return &v }
