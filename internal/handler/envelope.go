package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/product"
)

// writeSuccess writes {"success":true,"data":...,"message":...}. A nil
// data writes "data":null.
func writeSuccess(w http.ResponseWriter, status int, message string, data func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("data")
	if data == nil {
		e.Null()
	} else {
		data(e)
	}
	if message != "" {
		e.FieldStart("message")
		e.Str(message)
	}
	e.ObjEnd()

	writeJSON(w, status, e.Bytes())
}

// writeError writes {"success":false,"error":...,"details":...}.
func writeError(w http.ResponseWriter, status int, msg, details string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(msg)
	if details != "" {
		e.FieldStart("details")
		e.Str(details)
	}
	e.ObjEnd()

	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// knownErrors maps sentinel errors to response statuses. The sentinel
// text is the client-facing message.
var knownErrors = []struct {
	err    error
	status int
}{
	{product.ErrLastImage, http.StatusBadRequest},
	{auth.ErrMissingCredentials, http.StatusBadRequest},
	{product.ErrNotFound, http.StatusNotFound},
	{product.ErrImageNotFound, http.StatusNotFound},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrNoToken, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
}

// fail maps err to a status and writes the error envelope. Unexpected
// errors are logged and reported with fallback as the message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		verr   *product.ValidationError
		tooBig *http.MaxBytesError
	)
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), "")
		return
	}
	if errors.As(err, &tooBig) {
		writeError(w, http.StatusBadRequest, "Request body too large", "")
		return
	}
	for _, k := range knownErrors {
		if !errors.Is(err, k.err) {
			continue
		}
		if k.status == http.StatusUnauthorized && !errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", `Token realm="api"`)
		}
		writeError(w, k.status, k.err.Error(), "")
		return
	}

	zctx.From(r.Context()).Error(fallback, zap.Error(err))
	details := ""
	if h.debug {
		details = err.Error()
	}
	writeError(w, http.StatusInternalServerError, fallback, details)
}
