package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Stellouuuuu/mojaloop-pension/internal/types"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxJSONBody = 1 << 20

// Status values are checked by the stores so that an unknown status is
// reported as invalid_status rather than as a malformed request.

type createBatchRequest struct {
	BatchCode     string          `json:"batch_code" validate:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPayments int64           `json:"total_payments" validate:"gte=0"`
	InitiatedBy   string          `json:"initiated_by" validate:"omitempty,max=128"`
	Status        string          `json:"status"`
	SuccessRate   float64         `json:"success_rate" validate:"gte=0,lte=100"`
}

func (r createBatchRequest) toNewBatch() types.NewBatch {
	return types.NewBatch{
		BatchCode:     r.BatchCode,
		TotalAmount:   r.TotalAmount,
		TotalPayments: r.TotalPayments,
		InitiatedBy:   r.InitiatedBy,
		Status:        types.BatchStatus(r.Status),
		SuccessRate:   r.SuccessRate,
	}
}

type updateBatchRequest struct {
	BatchCode     *string          `json:"batch_code" validate:"omitempty,min=1"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	TotalPayments *int64           `json:"total_payments" validate:"omitempty,gte=0"`
	SuccessRate   *float64         `json:"success_rate" validate:"omitempty,gte=0,lte=100"`
	Status        *string          `json:"status"`
	InitiatedBy   *string          `json:"initiated_by" validate:"omitempty,max=128"`
}

func (r updateBatchRequest) toUpdate() types.BatchUpdate {
	u := types.BatchUpdate{
		BatchCode:     r.BatchCode,
		TotalAmount:   r.TotalAmount,
		TotalPayments: r.TotalPayments,
		SuccessRate:   r.SuccessRate,
		InitiatedBy:   r.InitiatedBy,
	}
	if r.Status != nil {
		status := types.BatchStatus(*r.Status)
		u.Status = &status
	}
	return u
}

type createPensionerRequest struct {
	UniqueID          string          `json:"unique_id" validate:"required"`
	FirstName         string          `json:"first_name" validate:"required"`
	LastName          string          `json:"last_name" validate:"required"`
	TypeID            *string         `json:"type_id"`
	MSISDN            string          `json:"msisdn" validate:"required,max=32"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" validate:"omitempty,len=3"`
	Comment           *string         `json:"comment"`
	Status            string          `json:"status"`
	HomeTransactionID *string         `json:"home_transaction_id"`
	BatchID           *int64          `json:"batch_id" validate:"omitempty,gt=0"`
}

func (r createPensionerRequest) toNewPensioner() types.NewPensioner {
	return types.NewPensioner{
		UniqueID:          r.UniqueID,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		TypeID:            r.TypeID,
		MSISDN:            r.MSISDN,
		Amount:            r.Amount,
		Currency:          r.Currency,
		Comment:           r.Comment,
		Status:            types.PensionerStatus(r.Status),
		HomeTransactionID: r.HomeTransactionID,
		BatchID:           r.BatchID,
	}
}

type updatePensionerRequest struct {
	UniqueID          *string          `json:"unique_id" validate:"omitempty,min=1"`
	FirstName         *string          `json:"first_name" validate:"omitempty,min=1"`
	LastName          *string          `json:"last_name" validate:"omitempty,min=1"`
	TypeID            *string          `json:"type_id"`
	MSISDN            *string          `json:"msisdn" validate:"omitempty,min=1,max=32"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          *string          `json:"currency" validate:"omitempty,len=3"`
	Comment           *string          `json:"comment"`
	Status            *string          `json:"status"`
	HomeTransactionID *string          `json:"home_transaction_id"`
	BatchID           *int64           `json:"batch_id" validate:"omitempty,gt=0"`
}

func (r updatePensionerRequest) toUpdate() types.PensionerUpdate {
	u := types.PensionerUpdate{
		UniqueID:          r.UniqueID,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		TypeID:            r.TypeID,
		MSISDN:            r.MSISDN,
		Amount:            r.Amount,
		Currency:          r.Currency,
		Comment:           r.Comment,
		HomeTransactionID: r.HomeTransactionID,
		BatchID:           r.BatchID,
	}
	if r.Status != nil {
		status := types.PensionerStatus(*r.Status)
		u.Status = &status
	}
	return u
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type successRateRequest struct {
	SuccessRate *float64 `json:"success_rate" validate:"required,gte=0,lte=100"`
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return &APIError{Code: InvalidRequest, Description: fmt.Sprintf("invalid JSON body: %v", err)}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return &APIError{Code: InvalidRequest, Description: strings.Join(fields, "; ")}
		}
		return &APIError{Code: InvalidRequest, Description: err.Error()}
	}

	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &APIError{Code: InvalidID, Description: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return id, nil
}

// pageParams reads limit and offset; absent values are left to the store
// defaults.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, &APIError{Code: InvalidRequest, Description: "limit must be an integer"}
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, &APIError{Code: InvalidRequest, Description: "offset must be an integer"}
		}
	}

	return limit, offset, nil
}
