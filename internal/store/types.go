package store

// Kind is an Item's file-vs-folder classification.
type Kind string

const (
	KindFile   Kind = "FILE"
	KindFolder Kind = "FOLDER"
)

// Item mirrors one file or folder in the drive.
type Item struct {
	InternalID       int64
	DriveID          string
	ExternalID       string
	Name             string
	Kind             Kind
	ParentInternalID *int64 // nil iff root
	Path             string
	CreatedAt        int64 // unix nanoseconds
	ModifiedAt       int64
	IsDeleted        bool
}

// EventKind enumerates the classified change kinds.
type EventKind string

const (
	EventCreate EventKind = "CREATE"
	EventRename EventKind = "RENAME"
	EventMove   EventKind = "MOVE"
	EventDelete EventKind = "DELETE"
	EventUpdate EventKind = "UPDATE"
)

// ChangeEvent is an append-only audit record of one classified change.
type ChangeEvent struct {
	InternalID          int64
	ItemInternalID      int64
	Kind                EventKind
	OldName             *string
	NewName             *string
	OldParentInternalID *int64
	NewParentInternalID *int64
	Timestamp           int64
}

// Subscription mirrors one live push subscription record.
type Subscription struct {
	ProviderID   string
	Resource     string
	SharedSecret string
	Expiry       int64 // unix seconds
	CreatedAt    int64
}
