package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/inventrak/internal/domain/auth"
	"github.com/xenking/inventrak/internal/domain/cart"
	"github.com/xenking/inventrak/internal/domain/catalog"
	"github.com/xenking/inventrak/internal/domain/pos"
	"github.com/xenking/inventrak/internal/domain/sale"
)

const maxBody = 1 << 20

// badRequestError reports a malformed request.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	var e jx.Encoder
	body(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// writeErr maps domain errors to API responses. Unrecognised errors are
// logged and reported as 500 without detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq    *badRequestError
		unknown   *cart.UnknownItemError
		invalid   *catalog.ValidationError
		form      *auth.FormError
		network   *auth.NetworkError
		forbidden *forbiddenError
	)
	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.Error())
	case errors.As(err, &form):
		writeError(w, http.StatusBadRequest, form.Error())
	case errors.Is(err, sale.ErrUnknownPaymentMethod), errors.Is(err, auth.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", `Bearer realm="inventrak"`)
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, forbidden.Error())
	case errors.Is(err, pos.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, unknown.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, sale.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.As(err, &invalid):
		writeError(w, http.StatusUnprocessableEntity, invalid.Error())
	case errors.As(err, &network):
		zctx.From(r.Context()).Warn("Auth backend unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "authentication service unavailable")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody calls field for every key of the JSON object in the request
// body. An empty body is accepted when optional is set.
func decodeBody(r *http.Request, optional bool, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return badRequest("read body", err)
	}
	if len(data) > maxBody {
		return badRequest("body too large", nil)
	}
	if len(data) == 0 {
		if optional {
			return nil
		}
		return badRequest("body required", nil)
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return badRequest("invalid body", err)
	}
	return nil
}
