package api

import (
	"fmt"
	"net/http"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

func (s *Server) CreatePensionerHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	var req createPensionerRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	id, err := s.pensioners.Create(r.Context(), req.toNewPensioner())
	if err != nil {
		return nil, err
	}

	return createdResponse{ID: id}, nil
}

func (s *Server) ListPensionersHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	limit, offset, err := pageParams(r)
	if err != nil {
		return nil, err
	}

	return s.pensioners.List(r.Context(), limit, offset)
}

func (s *Server) GetPensionerHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	return s.pensioners.GetByID(r.Context(), id)
}

func (s *Server) GetPensionerByUniqueIDHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return s.pensioners.GetByUniqueID(r.Context(), r.PathValue("uniqueID"))
}

func (s *Server) UpdatePensionerHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req updatePensionerRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	update := req.toUpdate()
	if update.IsEmpty() {
		return nil, &APIError{Code: InvalidRequest, Description: "no field to update"}
	}

	ok, err := s.pensioners.Update(r.Context(), id, update)
	return pensionerUpdated(id, ok, err)
}

func (s *Server) UpdatePensionerStatusHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	ok, err := s.pensioners.UpdateStatus(r.Context(), id, types.PensionerStatus(req.Status))
	return pensionerUpdated(id, ok, err)
}

func (s *Server) DeletePensionerHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	if err := s.pensioners.Delete(r.Context(), id); err != nil {
		return nil, err
	}

	return "ok", nil
}

func pensionerUpdated(id int64, ok bool, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("pensioner %d not found", id))
	}
	return updatedResponse{Updated: true}, nil
}
