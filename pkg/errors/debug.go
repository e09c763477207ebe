package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// ErrorDump flattens an error chain for structured logs. Driver and billing
// provider fields are filled when the chain carries such an error.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`

	StripeType      string `json:"stripe_type,omitempty"`
	StripeCode      string `json:"stripe_code,omitempty"`
	StripeRequestID string `json:"stripe_request_id,omitempty"`
	StripeStatus    int    `json:"stripe_status,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Retryable: Retryable(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.fillPostgres(err)
	d.fillStripe(err)
	return d
}

func (d *ErrorDump) fillPostgres(err error) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
		return
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}
}

func (d *ErrorDump) fillStripe(err error) {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return
	}
	d.StripeType = string(stripeErr.Type)
	d.StripeCode = string(stripeErr.Code)
	d.StripeRequestID = stripeErr.RequestID
	d.StripeStatus = stripeErr.HTTPStatusCode
}
