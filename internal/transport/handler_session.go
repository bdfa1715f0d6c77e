package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/backoffice/internal/filterbar"
	"github.com/pitabwire/backoffice/internal/listing"
	"github.com/pitabwire/backoffice/model"
)

const maxEventBody = 64 << 10

// eventRequest is the body of a session event: the filter bar event plus
// the page size to use if the event commits.
type eventRequest struct {
	filterbar.Event
	PageSize int `json:"page_size,omitempty"`
}

func handleOpenSession(sessions *listing.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := sessions.Open(r.Context(), chi.URLParam(r, "viewId"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		w.Header().Set("Location", "/ui/sessions/"+resp.SessionID)
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func handleDescribeSession(sessions *listing.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := sessions.Describe(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleSessionEvent(sessions *listing.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody))
		if err := dec.Decode(&req); err != nil {
			WriteBadRequest(w, r, "invalid event body: "+err.Error())
			return
		}

		resp, err := sessions.Apply(r.Context(), chi.URLParam(r, "sessionId"), req.Event, model.PageRequest{PageSize: req.PageSize})
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleCloseSession(sessions *listing.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionId")
		if !sessions.Close(id) {
			WriteError(w, r, model.NewSessionExpiredError(id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
