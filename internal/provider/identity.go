package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tonimelisma/drive-mirror/internal/ident"
)

// InvalidReason classifies why probe_identity could not confirm the
// bearer credential.
type InvalidReason string

const (
	ReasonExpired   InvalidReason = "EXPIRED"
	ReasonForbidden InvalidReason = "FORBIDDEN"
	ReasonTransport InvalidReason = "TRANSPORT"
	ReasonUnknown   InvalidReason = "UNKNOWN"
)

// IdentityResult is the result union ProbeIdentity never fails to produce:
// either Identity is populated, or Reason is — exactly one of the two.
type IdentityResult struct {
	Identity *Identity
	Reason   InvalidReason
}

type meResponse struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"user_principal_name"`
}

// ProbeIdentity performs the minimal authenticated read ("describe
// caller") used both by Bootstrap and by the Credential Gate's validate
// call. It never returns an error for an invalid credential — that
// outcome is carried in IdentityResult.Reason, per its "never throws"
// contract; transport failures, including a cancelled ctx, map to
// ReasonTransport. A non-nil error is returned only when a successful
// response body cannot be decoded.
func (c *Client) ProbeIdentity(ctx context.Context) (IdentityResult, error) {
	body, err := c.Do(ctx, "GET", "/me", nil)
	if err == nil {
		var mr meResponse
		if jsonErr := json.Unmarshal(body, &mr); jsonErr != nil {
			return IdentityResult{}, fmt.Errorf("provider: decoding identity response: %w", jsonErr)
		}

		return IdentityResult{Identity: toIdentity(mr)}, nil
	}

	var perr *Error
	if !errors.As(err, &perr) {
		return IdentityResult{Reason: ReasonTransport}, nil
	}

	switch {
	case errors.Is(perr, ErrAuthInvalid) && perr.StatusCode == 401:
		return IdentityResult{Reason: ReasonExpired}, nil
	case errors.Is(perr, ErrAuthInvalid):
		return IdentityResult{Reason: ReasonForbidden}, nil
	case errors.Is(perr, ErrTransient) || errors.Is(perr, ErrRateLimited):
		return IdentityResult{Reason: ReasonTransport}, nil
	default:
		return IdentityResult{Reason: ReasonUnknown}, nil
	}
}

// toIdentity normalizes the raw "describe caller" payload, preferring the
// mail field and falling back to the principal name for personal vs.
// work accounts.
func toIdentity(mr meResponse) *Identity {
	principal := mr.Mail
	if principal == "" {
		principal = mr.UserPrincipalName
	}

	return &Identity{UserID: mr.ID, PrincipalName: principal}
}

type driveResponse struct {
	ID string `json:"id"`
}

// ResolveDefaultDrive looks up the caller's default drive id.
func (c *Client) ResolveDefaultDrive(ctx context.Context) (ident.ID, error) {
	body, err := c.Do(ctx, "GET", "/me/drive", nil)
	if err != nil {
		return ident.ID{}, fmt.Errorf("provider: resolving default drive: %w", err)
	}

	var dr driveResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return ident.ID{}, fmt.Errorf("provider: decoding drive response: %w", err)
	}

	return ident.New(dr.ID), nil
}
