package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error chain. It never reaches clients.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Dump flattens err for structured logging, including the Postgres fields of
// a pgx or lib/pq error found anywhere in the chain.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.fillPG(err)
	return d
}

func (d *ErrorDump) fillPG(err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.PGCode, d.PGMessage, d.PGDetail = pgErr.Code, pgErr.Message, pgErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pgErr.ConstraintName, pgErr.TableName, pgErr.ColumnName
		return
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pqErr.Constraint, pqErr.Table, pqErr.Column
	}
}
