package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type bootstrapResponse struct {
	Principal      string `json:"principal"`
	DriveID        string `json:"drive_id"`
	SubscriptionID string `json:"subscription_id"`
	ItemsProcessed int    `json:"items_processed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleBootstrap implements the /bootstrap operation: validate the
// credential, resolve the default drive, ensure a live subscription, run
// a full initial sync, and only then enable the Credential Gate.
func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := h.gate.Validate(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if identity.Identity == nil {
		h.logger.Warn("bootstrap: credential rejected", slog.String("reason", string(identity.Reason)))
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "credential invalid: " + string(identity.Reason)})

		return
	}

	driveID, err := h.drives.ResolveDefaultDrive(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	sub, err := h.subs.EnsureLive(ctx, ResourceForDrive(driveID))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := h.engine.PerformInitialSync(ctx, driveID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.gate.Enable()

	h.logger.Info("bootstrap complete",
		slog.String("principal", identity.Identity.PrincipalName),
		slog.String("drive_id", driveID.String()),
		slog.Int("items_processed", result.ItemsProcessed))

	writeJSON(w, http.StatusOK, bootstrapResponse{
		Principal:      identity.Identity.PrincipalName,
		DriveID:        driveID.String(),
		SubscriptionID: sub.ProviderID,
		ItemsProcessed: result.ItemsProcessed,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Error("api: request failed", slog.Int("status", status), slog.String("error", err.Error()))
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
