package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/findit/internal/errs"
	"github.com/and161185/findit/internal/model"
	"github.com/and161185/findit/internal/service"
)

type pinRequest struct {
	PIN string `json:"pin" validate:"required"`
}

// createItem accepts multipart/form-data with an optional "image" part.
func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.o.MaxUploadBytes+maxJSONBody)
	if err := r.ParseMultipartForm(s.o.MaxUploadBytes); err != nil {
		s.fail(w, r, fmt.Errorf("%w: invalid multipart form", errs.ErrInvalidInput))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.NewItem{
		Title:             r.FormValue("title"),
		Description:       r.FormValue("description"),
		Category:          r.FormValue("category"),
		Location:          r.FormValue("location"),
		Keywords:          r.FormValue("keywords"),
		DateFound:         r.FormValue("date_found"),
		ContactPreference: r.FormValue("contact_preference"),
		Status:            model.ItemStatus(r.FormValue("status")),
	}

	f, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		s.fail(w, r, fmt.Errorf("%w: unreadable image", errs.ErrInvalidInput))
		return
	default:
		defer f.Close()
		in.Photo = f
	}

	it, err := s.d.Items.Create(r.Context(), caller(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(*it))
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.d.Items.List(r.Context(), model.ItemFilter{
		Query:    q.Get("q"),
		Status:   model.ItemStatus(q.Get("status")),
		Category: q.Get("category"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItems(out))
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// anonymous viewers get ID 0 and never see the PIN
	it, err := s.d.Items.Get(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(*it))
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.d.Items.Delete(r.Context(), caller(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Server) generatePIN(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pin, err := s.d.Items.GeneratePIN(r.Context(), caller(r).ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pin": pin})
}

func (s *Server) verifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req pinRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.d.Items.VerifyPIN(r.Context(), caller(r).ID, id, req.PIN); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}
