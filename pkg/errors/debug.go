package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDiagnostics are the SQLSTATE fields Postgres attaches to a failure.
type PGDiagnostics struct {
	Code       string `json:"pg_code"`
	Message    string `json:"pg_message,omitempty"`
	Detail     string `json:"pg_detail,omitempty"`
	Table      string `json:"pg_table,omitempty"`
	Column     string `json:"pg_column,omitempty"`
	Constraint string `json:"pg_constraint,omitempty"`
}

// ErrorDump is the log view of an error: its typed code, every link of the
// chain and any Postgres diagnostics found along it.
type ErrorDump struct {
	TopMessage string         `json:"top_message"`
	Code       Code           `json:"code,omitempty"`
	Chain      []string       `json:"chain,omitempty"`
	Postgres   *PGDiagnostics `json:"postgres,omitempty"`
}

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
	if pg, ok := Postgres(err); ok {
		d.Postgres = &pg
	}
	return d
}

// Postgres finds a pgx or lib/pq error in err's chain.
func Postgres(err error) (PGDiagnostics, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiagnostics{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostics{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}, true
	}
	return PGDiagnostics{}, false
}
