package http

import (
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/IvanBrykalov/memstore/internal/store"
)

type kvHandler struct {
	st     *store.Store
	nextID atomic.Uint64
}

func (h *kvHandler) mount(r chi.Router) {
	r.Route("/v1/kv", func(r chi.Router) {
		r.Method(http.MethodPut, "/{key}", HandlerFunc(h.put))
		r.Method(http.MethodGet, "/{key}", HandlerFunc(h.get))
		r.Method(http.MethodDelete, "/{key}", HandlerFunc(h.del))
	})
}

// PutRequest is the body of PUT /v1/kv/{key}.
type PutRequest struct {
	Value *store.Value `json:"value"`
}

// PutResponse is the data of a successful PUT.
type PutResponse struct {
	OK bool `json:"ok"`
}

// GetResponse is the data of a successful GET.
type GetResponse struct {
	Key   string      `json:"key"`
	Value store.Value `json:"value"`
}

// DeleteResponse is the data of a DELETE.
type DeleteResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// keyParam returns the decoded {key} path segment.
func keyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		// chi routes on the escaped path when one exists.
		k, err := url.PathUnescape(key)
		if err != nil {
			return "", BadRequest("malformed key")
		}
		key = k
	}
	if key == "" {
		return "", BadRequest("empty key")
	}
	return key, nil
}

func (h *kvHandler) put(w http.ResponseWriter, r *http.Request) error {
	key, err := keyParam(r)
	if err != nil {
		return err
	}
	var req PutRequest
	if err := DecodeJSON(r, &req); err != nil {
		return err
	}
	resp := h.st.Handle(store.Request{
		ID:    h.nextID.Add(1),
		Op:    store.OpPut,
		Key:   []byte(key),
		Value: req.Value,
	})
	if resp.Kind == store.RespError {
		return fromStoreCode(resp.Code)
	}
	writeSuccess(w, http.StatusOK, PutResponse{OK: true})
	return nil
}

func (h *kvHandler) get(w http.ResponseWriter, r *http.Request) error {
	key, err := keyParam(r)
	if err != nil {
		return err
	}
	resp := h.st.Handle(store.Request{ID: h.nextID.Add(1), Op: store.OpGet, Key: []byte(key)})
	switch resp.Kind {
	case store.RespValue:
		writeSuccess(w, http.StatusOK, GetResponse{Key: key, Value: resp.Value})
		return nil
	case store.RespMiss:
		return NewAppError(http.StatusNotFound, CodeKeyNotFound, "key not found", nil)
	default:
		return fromStoreCode(resp.Code)
	}
}

func (h *kvHandler) del(w http.ResponseWriter, r *http.Request) error {
	key, err := keyParam(r)
	if err != nil {
		return err
	}
	resp := h.st.Handle(store.Request{ID: h.nextID.Add(1), Op: store.OpRemove, Key: []byte(key)})
	if resp.Kind == store.RespError {
		return fromStoreCode(resp.Code)
	}
	writeSuccess(w, http.StatusOK, DeleteResponse{Key: key, Removed: resp.Kind == store.RespValue})
	return nil
}

// fromStoreCode maps a store error code to an HTTP error.
func fromStoreCode(c store.Code) *AppError {
	switch c {
	case store.CodeMissingValue:
		return NewAppError(http.StatusBadRequest, CodeMissingValue, "value is required", nil)
	case store.CodeTooLarge:
		return NewAppError(http.StatusRequestEntityTooLarge, CodeEntryTooLarge, "entry exceeds segment budget", nil)
	default:
		return Internal(c.String())
	}
}
