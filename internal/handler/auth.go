package handler

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
)

// loginBodyLimit caps login request bodies.
const loginBodyLimit = 64 << 10

// Login handles POST /login. Credentials come as JSON or form fields.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to login"

	username, password, err := decodeCredentials(w, r)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}

	s, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		h.fail(w, r, err, fallback)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(s.Token)
		e.FieldStart("user_id")
		e.Int64(s.Account.ID)
		e.FieldStart("username")
		e.Str(s.Account.Username)
		e.FieldStart("email")
		e.Str(s.Account.Email)
		e.ObjEnd()
	})
}

// decodeCredentials reads username and password. Missing or non-string
// values come back empty and are rejected by the auth service.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (username, password string, _ error) {
	r.Body = http.MaxBytesReader(w, r.Body, loginBodyLimit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(loginBodyLimit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return "", "", badBody(err)
		}
		return r.PostFormValue("username"), r.PostFormValue("password"), nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", badBody(err)
	}
	if len(body) == 0 {
		return "", "", nil
	}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return "", "", nil
	}
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "username":
			dst = &username
		case "password":
			dst = &password
		default:
			return d.Skip()
		}
		if d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		*dst = s
		return err
	})
	if err != nil {
		return "", "", badBody(err)
	}
	return username, password, nil
}

// Dashboard handles GET /dashboard: the caller's own products with the
// catalog list parameters applied.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrNoToken, "")
		return
	}

	page, err := h.catalog.Dashboard(r.Context(), account.ID, catalog.ParseParams(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err, "Failed to retrieve dashboard data")
		return
	}
	writeSuccess(w, http.StatusOK, "Dashboard data retrieved successfully", func(e *jx.Encoder) {
		e.ObjStart()
		h.encodePageFields(e, page)
		e.FieldStart("creator")
		encodeCreator(e, account)
		e.ObjEnd()
	})
}
