package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/inventrak/internal/codec"
	"github.com/xenking/inventrak/internal/domain/auth"
)

func writeGrant(w http.ResponseWriter, status int, g *auth.Grant) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("token", func(e *jx.Encoder) { e.Str(g.Token) })
			e.Field("user", func(e *jx.Encoder) { codec.User(e, g.User) })
		})
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) error {
	var form auth.SignupForm
	err := decodeBody(r, false, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			form.Name, err = d.Str()
		case "email":
			form.Email, err = d.Str()
		case "password":
			form.Password, err = d.Str()
		case "phone":
			form.Phone, err = d.Str()
		case "companyName":
			form.CompanyName, err = d.Str()
		case "businessCategory":
			var s string
			s, err = d.Str()
			form.BusinessCategory = auth.BusinessCategory(s)
		case "otherCategory":
			form.OtherCategory, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	g, err := h.auth.Signup(r.Context(), form)
	if err != nil {
		return err
	}
	writeGrant(w, http.StatusCreated, g)
	return nil
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	var email, password, role string
	err := decodeBody(r, false, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			email, err = d.Str()
		case "password":
			password, err = d.Str()
		case "role":
			role, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return err
	}
	g, err := h.auth.Login(r.Context(), email, password, parsed)
	if err != nil {
		return err
	}
	writeGrant(w, http.StatusOK, g)
	return nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) error {
	token, _ := bearer(r.Header.Get("Authorization"))
	if err := h.auth.Logout(r.Context(), token); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) error {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { codec.User(e, *u) })
	return nil
}
