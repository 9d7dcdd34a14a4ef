package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/naughtygopher/errors"

	"github.com/prashantkr001/inventory-api/internal/item"
)

func (ht *HTTP) itemRoutes(router chi.Router) {
	router.Route("/items", func(r chi.Router) {
		r.Post("/", ht.ErrorHandler(ht.AddItem))
		r.Get("/", ht.ErrorHandler(ht.ListItems))
		r.Get("/{code}", ht.ErrorHandler(ht.GetItem))
		r.Put("/{code}", ht.ErrorHandler(ht.UpdateItem))
		r.Delete("/{code}", ht.ErrorHandler(ht.DeleteItem))
	})
}

func itemCode(req *http.Request) (int, error) {
	str := chi.URLParam(req, "code")
	code, err := strconv.Atoi(str)
	if err != nil {
		return 0, errors.InputBodyf("invalid item code provided: %s", str)
	}
	return code, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	jResp, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(jResp)
	if err != nil {
		return errors.Wrap(err, "failed to write response")
	}

	return nil
}

func (ht *HTTP) AddItem(w http.ResponseWriter, req *http.Request) error {
	payload := item.Item{}
	err := json.NewDecoder(req.Body).Decode(&payload)
	if err != nil {
		return errors.InputBodyf("failed to decode request body: %s", err.Error())
	}

	createdItem, err := ht.apis.ItemAdd(req.Context(), payload)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusCreated, createdItem)
}

// UpdateItem replaces the item, the code in the URL takes precedence over the one in the body.
func (ht *HTTP) UpdateItem(w http.ResponseWriter, req *http.Request) error {
	code, err := itemCode(req)
	if err != nil {
		return err
	}

	payload := item.Item{}
	err = json.NewDecoder(req.Body).Decode(&payload)
	if err != nil {
		return errors.InputBodyf("failed to decode request body: %s", err.Error())
	}
	payload.Code = code

	updatedItem, err := ht.apis.ItemUpdate(req.Context(), payload)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, updatedItem)
}

func (ht *HTTP) DeleteItem(w http.ResponseWriter, req *http.Request) error {
	code, err := itemCode(req)
	if err != nil {
		return err
	}

	deleted, err := ht.apis.ItemDelete(req.Context(), code)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, deleted)
}

func (ht *HTTP) GetItem(w http.ResponseWriter, req *http.Request) error {
	code, err := itemCode(req)
	if err != nil {
		return err
	}

	found, err := ht.apis.ItemByCode(req.Context(), code)
	if err != nil {
		return err
	}

	if found == nil {
		return errors.Wrapf(item.ErrNotFound, ": %d", code)
	}

	return writeJSON(w, http.StatusOK, found)
}

func (ht *HTTP) ListItems(w http.ResponseWriter, req *http.Request) error {
	output, err := ht.apis.ItemList(req.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, output)
}
