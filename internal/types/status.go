package types

// Status is the row lifecycle shared by every table. Archived rows are kept
// for history but excluded from reads.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)
