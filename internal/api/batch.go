package api

import (
	"fmt"
	"net/http"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
	"github.com/Stellouuuuu/mojaloop-pension/internal/types"
)

type createdResponse struct {
	ID int64 `json:"id"`
}

type updatedResponse struct {
	Updated bool `json:"updated"`
}

func (s *Server) CreateBatchHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	var req createBatchRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	id, err := s.batches.Create(r.Context(), req.toNewBatch())
	if err != nil {
		return nil, err
	}

	return createdResponse{ID: id}, nil
}

func (s *Server) ListBatchesHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	limit, offset, err := pageParams(r)
	if err != nil {
		return nil, err
	}

	return s.batches.List(r.Context(), limit, offset)
}

func (s *Server) GetBatchHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	return s.batches.GetByID(r.Context(), id)
}

func (s *Server) GetBatchByCodeHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return s.batches.GetByCode(r.Context(), r.PathValue("code"))
}

func (s *Server) UpdateBatchHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req updateBatchRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	update := req.toUpdate()
	if update.IsEmpty() {
		return nil, &APIError{Code: InvalidRequest, Description: "no field to update"}
	}

	ok, err := s.batches.Update(r.Context(), id, update)
	return batchUpdated(id, ok, err)
}

func (s *Server) UpdateBatchStatusHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	ok, err := s.batches.UpdateStatus(r.Context(), id, types.BatchStatus(req.Status))
	return batchUpdated(id, ok, err)
}

func (s *Server) UpdateBatchSuccessRateHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req successRateRequest
	if err := s.decode(w, r, &req); err != nil {
		return nil, err
	}

	ok, err := s.batches.UpdateSuccessRate(r.Context(), id, *req.SuccessRate)
	return batchUpdated(id, ok, err)
}

func (s *Server) RefreshSuccessRateHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	rate, err := s.reporter.RefreshSuccessRate(r.Context(), id)
	if err != nil {
		return nil, err
	}

	return map[string]float64{"success_rate": rate}, nil
}

func (s *Server) DeleteBatchHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	if err := s.batches.Delete(r.Context(), id); err != nil {
		return nil, err
	}

	return "ok", nil
}

func (s *Server) ListBatchPensionersHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	return s.pensioners.GetByBatchID(r.Context(), id)
}

func (s *Server) BatchSummaryHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	return s.reporter.Summary(r.Context(), id)
}

func (s *Server) BatchesWithPensionersHandler(w http.ResponseWriter, r *http.Request) (any, error) {
	return s.reporter.BatchesWithPensioners(r.Context())
}

// batchUpdated turns the "nothing changed" result of an update into a not
// found error, the only way it can happen once the request is non-empty.
func batchUpdated(id int64, ok bool, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("batch %d not found", id))
	}
	return updatedResponse{Updated: true}, nil
}
