package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/inventrak/internal/codec"
	"github.com/xenking/inventrak/internal/domain/pos"
	"github.com/xenking/inventrak/internal/domain/sale"
)

func writeView(w http.ResponseWriter, status int, v pos.View) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Str(v.SessionID) })
			e.Field("cashierName", func(e *jx.Encoder) { e.Str(v.Cashier) })
			e.Field("items", func(e *jx.Encoder) { codec.Lines(e, v.Lines) })
			e.Field("total", func(e *jx.Encoder) { codec.Money(e, v.Total) })
			e.Field("units", func(e *jx.Encoder) { e.Int(v.Units) })
		})
	})
}

// openCart starts a terminal session. The cashier defaults to the signed-in
// user's name.
func (h *Handler) openCart(w http.ResponseWriter, r *http.Request) error {
	cashier := userFrom(r.Context()).Name
	err := decodeBody(r, true, func(d *jx.Decoder, key string) error {
		if key != "cashierName" {
			return d.Skip()
		}
		name, err := d.Str()
		if name != "" {
			cashier = name
		}
		return err
	})
	if err != nil {
		return err
	}

	v, err := h.pos.OpenSession(r.Context(), cashier)
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/api/carts/"+v.SessionID)
	writeView(w, http.StatusCreated, v)
	return nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	v, err := h.pos.View(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeView(w, http.StatusOK, v)
	return nil
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) error {
	v, err := h.pos.Clear(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeView(w, http.StatusOK, v)
	return nil
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) error {
	var productID string
	err := decodeBody(r, false, func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		var err error
		productID, err = d.Str()
		return err
	})
	if err != nil {
		return err
	}
	if productID == "" {
		return badRequest("productId is required", nil)
	}

	v, err := h.pos.AddItem(r.Context(), r.PathValue("id"), productID)
	if err != nil {
		return err
	}
	writeView(w, http.StatusOK, v)
	return nil
}

// setQuantity sets a line's quantity; zero or less removes it.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) error {
	var (
		qty int
		set bool
	)
	err := decodeBody(r, false, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = d.Int()
		set = err == nil
		return err
	})
	if err != nil {
		return err
	}
	if !set {
		return badRequest("quantity is required", nil)
	}

	v, err := h.pos.SetQuantity(r.Context(), r.PathValue("id"), r.PathValue("productId"), qty)
	if err != nil {
		return err
	}
	writeView(w, http.StatusOK, v)
	return nil
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) error {
	v, err := h.pos.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("productId"))
	if err != nil {
		return err
	}
	writeView(w, http.StatusOK, v)
	return nil
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) error {
	var method, cashier string
	err := decodeBody(r, true, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "paymentMethod":
			method, err = d.Str()
		case "cashierName":
			cashier, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	pm, err := sale.ParsePaymentMethod(method)
	if err != nil {
		return err
	}

	tx, err := h.pos.Checkout(r.Context(), r.PathValue("id"), pos.CheckoutRequest{
		Cashier:        cashier,
		Method:         pm,
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { codec.Transaction(e, tx) })
	return nil
}
