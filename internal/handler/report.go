package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/inventrak/internal/codec"
)

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) error {
	inv, items, err := h.reports.Inventory(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Inventory(e, inv, items) })
	return nil
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) error {
	alerts, err := h.reports.LowStock(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Alerts(e, alerts) })
	return nil
}

// sales summarises transactions. ?since= takes an RFC 3339 timestamp and
// ?days= a trailing window; without either every transaction counts.
func (h *Handler) sales(w http.ResponseWriter, r *http.Request) error {
	since, err := parseSince(r, time.Now())
	if err != nil {
		return err
	}
	s, err := h.reports.Sales(r.Context(), since)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.Sales(e, s) })
	return nil
}

func parseSince(r *http.Request, now time.Time) (time.Time, error) {
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, badRequest("invalid since", err)
		}
		return t, nil
	}
	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return time.Time{}, badRequest("invalid days", errors.New("must be a positive integer"))
		}
		return now.AddDate(0, 0, -days), nil
	}
	return time.Time{}, nil
}
