package provider

import "github.com/tonimelisma/drive-mirror/internal/ident"

// Item is the narrow, typed view of a provider delta entry this system
// consumes: dynamic payloads decode into a narrow typed record, and
// every other field the provider returns is ignored.
type Item struct {
	ExternalID       string
	Name             string
	ParentExternalID string // empty means this item is the drive root
	IsFolder         bool
	Tombstone        bool
	ModifiedAtUnix   int64
}

// Page is one page of a delta response: either NextCursor or FinalCursor
// is set, never both.
type Page struct {
	Items       []Item
	NextCursor  string
	FinalCursor string
}

// Identity is the normalized result of probe_identity on success.
type Identity struct {
	UserID        string
	PrincipalName string
}

// Subscription mirrors the provider's subscription resource.
type Subscription struct {
	ID         string
	Resource   string
	Expiry     int64 // unix seconds
	ClientState string
}

// DriveID is re-exported for callers that don't want to import ident
// directly just to name a drive.
type DriveID = ident.ID
