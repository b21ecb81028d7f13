package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tonimelisma/drive-mirror/internal/worker"
)

// handshakeQueryParam is the query-string key the provider echoes a
// validation challenge through when first registering a subscription.
const handshakeQueryParam = "validationToken"

type notificationEnvelope struct {
	Value []notificationEntry `json:"value"`
}

type notificationEntry struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	Resource       string `json:"resource"`
	ChangeType     string `json:"changeType"`
}

type notifyResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// handleNotify implements the /notify operation: the validation handshake
// (echo the challenge verbatim as text/plain) on subscription creation,
// and the steady-state notification path (verify each entry's shared
// secret, enqueue a reconciliation job per valid entry, silently drop the
// rest) thereafter. A notification is a hint to sync, never the payload
// itself — change_type is logged only.
func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get(handshakeQueryParam); token != "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, token)

		return
	}

	var env notificationEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed notification body: " + err.Error()})
		return
	}

	ctx := r.Context()

	accepted, dropped := 0, 0

	for _, entry := range env.Value {
		ok, err := h.verifier.VerifyNotification(ctx, entry.SubscriptionID, entry.ClientState)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}

		if !ok {
			h.logger.Warn("notify: dropping entry with invalid shared secret",
				slog.String("subscription_id", entry.SubscriptionID))

			dropped++

			continue
		}

		driveID, known := DriveIDFromResource(entry.Resource)
		if !known {
			h.logger.Warn("notify: dropping entry with unrecognized resource", slog.String("resource", entry.Resource))

			dropped++

			continue
		}

		job := worker.Job{DriveID: driveID, Reason: entry.ChangeType}

		if err := h.queue.Enqueue(job); err != nil {
			if errors.Is(err, worker.ErrQueueFull) {
				writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "queue full, retry later"})
				return
			}

			h.writeError(w, http.StatusInternalServerError, err)

			return
		}

		accepted++
	}

	writeJSON(w, http.StatusOK, notifyResponse{Accepted: accepted, Dropped: dropped})
}
