package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/listing"
	"github.com/pitabwire/backoffice/model"
)

// Reserved query parameters of the data endpoint.
const (
	paramPage     = "page"
	paramPageSize = "page_size"
)

func handleGetView(views *listing.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, err := views.GetView(r.Context(), chi.URLParam(r, "viewId"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

// handleGetViewData serves one page of a view. Filter values are read from
// the query string under the view's URL prefix; a parameter given twice is
// a range.
func handleGetViewData(views *listing.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := views.View(chi.URLParam(r, "viewId"))
		if err != nil {
			WriteError(w, r, err)
			return
		}

		q := r.URL.Query()
		page, err := queryInt(q.Get(paramPage), 1)
		if err != nil || page < 1 {
			WriteBadRequest(w, r, "page must be a positive integer")
			return
		}
		size, err := queryInt(q.Get(paramPageSize), 0)
		if err != nil || size < 0 {
			WriteBadRequest(w, r, "page_size must be a non-negative integer")
			return
		}

		codec := filter.URLCodec{Prefix: view.Filter.URLPrefix}
		values := codec.Decode(q, paramPage, paramPageSize)

		data, err := views.GetViewData(r.Context(), view.ID, values, model.PageRequest{Page: page, PageSize: size})
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, data)
	}
}

func handleGetOptions(views *listing.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		resp, err := views.Options(r.Context(), q.Get("view"), chi.URLParam(r, "capability"), q.Get("parent"))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// queryInt parses an integer query value, returning def when it is empty.
func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
