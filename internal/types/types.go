package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"asynccalc/internal/models"
)

// Number is a float64 that survives JSON: infinities and NaN are written as the strings
// "+Inf", "-Inf" and "NaN".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return json.Marshal(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return json.Marshal(v)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = Number(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("number: %w", err)
	}
	*n = Number(v)
	return nil
}

type CalculateRequest struct {
	Expression string `json:"expression"`
}

type GetRequest struct {
	ID string `json:"id"`
}

type CancelRequest struct {
	ID string `json:"id"`
}

type ListRequest struct {
	Statuses []string `json:"statuses,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

type ErrorDetails struct {
	ErrorCode string `json:"errorCode"`
	Offset    *int   `json:"offset,omitempty"`
	Length    *int   `json:"length,omitempty"`
}

type Calculation struct {
	ID         string        `json:"id"`
	Expression string        `json:"expression"`
	Status     string        `json:"status"`
	Result     *Number       `json:"result,omitempty"`
	Error      *ErrorDetails `json:"error,omitempty"`
	CreatedBy  User          `json:"createdBy"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

type CalculationList struct {
	Calculations []Calculation `json:"calculations"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

// CalculationStatus is the answer to a cancel request.
type CalculationStatus struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Result    *Number       `json:"result,omitempty"`
	Error     *ErrorDetails `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type Health struct {
	Status   string `json:"status"`
	Pending  int    `json:"pending"`
	Running  int    `json:"running"`
	Capacity int    `json:"capacity"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func FromCalculation(c models.Calculation) Calculation {
	return Calculation{
		ID:         c.ID.String(),
		Expression: c.Expression,
		Status:     string(c.Status),
		Result:     fromResult(c.Result),
		Error:      FromErrorDetails(c.Error),
		CreatedBy:  User{ID: c.CreatedBy.ID, Login: c.CreatedBy.Login},
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func FromCalculations(calcs []models.Calculation) []Calculation {
	out := make([]Calculation, 0, len(calcs))
	for _, c := range calcs {
		out = append(out, FromCalculation(c))
	}
	return out
}

func FromStatusUpdate(u models.CalculationStatusUpdate) CalculationStatus {
	return CalculationStatus{
		ID:        u.ID.String(),
		Status:    string(u.Status),
		Result:    fromResult(u.Result),
		Error:     FromErrorDetails(u.Error),
		UpdatedAt: u.UpdatedAt,
	}
}

func FromErrorDetails(d *models.CalculationErrorDetails) *ErrorDetails {
	if d == nil {
		return nil
	}
	return &ErrorDetails{ErrorCode: d.ErrorCode, Offset: d.Offset, Length: d.Length}
}

func fromResult(v *float64) *Number {
	if v == nil {
		return nil
	}
	n := Number(*v)
	return &n
}
