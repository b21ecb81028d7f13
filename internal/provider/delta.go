package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tonimelisma/drive-mirror/internal/ident"
)

// deltaResponse is the wire shape the provider returns. Field names
// reflect an opaque `{value:[…], next:?, final:?}` contract, not any one
// provider's actual JSON — see identity.go for the same narrow-decode
// discipline.
type deltaResponse struct {
	Value       []deltaItemResponse `json:"value"`
	NextCursor  string              `json:"next"`
	FinalCursor string              `json:"final"`
}

type deltaItemResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ParentID  string `json:"parent_id"`
	Folder    bool   `json:"is_folder"`
	Deleted   bool   `json:"deleted"`
	ModifiedAt int64  `json:"modified_at"`
}

// Delta fetches a single page of the delta feed for driveID, starting at
// cursor (empty cursor means a full sync). Exactly one of Page.NextCursor
// / Page.FinalCursor will be set on success.
func (c *Client) Delta(ctx context.Context, driveID ident.ID, cursor string) (*Page, error) {
	path := fmt.Sprintf("/drives/%s/delta", url.PathEscape(driveID.String()))
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}

	body, err := c.Do(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: delta page for drive %s: %w", driveID, err)
	}

	var dr deltaResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("%w: provider: decoding delta response: %v", ErrFatal, err)
	}

	if dr.NextCursor != "" && dr.FinalCursor != "" {
		return nil, fmt.Errorf("%w: provider: delta page set both next and final cursor", ErrFatal)
	}

	items := make([]Item, 0, len(dr.Value))
	for _, it := range dr.Value {
		items = append(items, Item{
			ExternalID:       it.ID,
			Name:             it.Name,
			ParentExternalID: it.ParentID,
			IsFolder:         it.Folder,
			Tombstone:        it.Deleted,
			ModifiedAtUnix:   it.ModifiedAt,
		})
	}

	items = normalizeDeltaItems(items, c.logger)

	return &Page{Items: items, NextCursor: dr.NextCursor, FinalCursor: dr.FinalCursor}, nil
}

// DeltaAll follows the next_cursor chain to completion, accumulating every
// item across all pages and returning the terminal final_cursor — the
// delta_complete helper.
func (c *Client) DeltaAll(ctx context.Context, driveID ident.ID, cursor string) ([]Item, string, error) {
	var all []Item

	token := cursor

	for {
		page, err := c.Delta(ctx, driveID, token)
		if err != nil {
			return nil, "", err
		}

		all = append(all, page.Items...)

		if page.FinalCursor != "" {
			return all, page.FinalCursor, nil
		}

		if page.NextCursor == "" {
			return nil, "", fmt.Errorf("%w: provider: delta page has neither next nor final cursor", ErrFatal)
		}

		token = page.NextCursor
	}
}
