package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTaskNotFound = errors.New("task not found")
)

// ClassifyError maps SQLite and Postgres driver errors to a query error
// kind. It returns nil for errors it doesn't recognize.
func ClassifyError(err error) *tracing.QueryError {
	if err == nil {
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &tracing.QueryError{Kind: tracing.KindConnectivity, Message: "could not connect to the database", Raw: err.Error()}
	}

	return nil
}

func classifySQLite(err sqlite3.Error) *tracing.QueryError {
	raw := err.Error()
	qe := &tracing.QueryError{Kind: tracing.KindGeneric, Message: raw, Raw: raw}

	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		qe.Kind, qe.Message = tracing.KindUniqueViolation, "a row with this value already exists"
		return qe
	case sqlite3.ErrConstraintNotNull:
		qe.Kind, qe.Message = tracing.KindNotNullViolation, "a required column was left empty"
		return qe
	case sqlite3.ErrConstraintForeignKey:
		qe.Kind, qe.Message = tracing.KindForeignKeyViolation, "the row references, or is referenced by, another row"
		return qe
	case sqlite3.ErrConstraintCheck:
		qe.Kind, qe.Message = tracing.KindCheckViolation, "a value is outside the allowed range"
		return qe
	}

	switch err.Code {
	case sqlite3.ErrError:
		if strings.Contains(raw, "syntax error") {
			qe.Kind, qe.Message = tracing.KindSyntaxError, "the statement is not valid SQL"
		}
	case sqlite3.ErrCantOpen, sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
		qe.Kind, qe.Message = tracing.KindConnectivity, "the database file is unavailable"
	}
	return qe
}

func classifyPostgres(err *pgconn.PgError) *tracing.QueryError {
	raw := err.Error()
	qe := &tracing.QueryError{Kind: tracing.KindGeneric, Message: err.Message, Raw: raw}

	switch {
	case err.Code == "23505":
		qe.Kind, qe.Message = tracing.KindUniqueViolation, "a row with this value already exists"
	case err.Code == "23502":
		qe.Kind, qe.Message = tracing.KindNotNullViolation, "a required column was left empty"
	case err.Code == "23503":
		qe.Kind, qe.Message = tracing.KindForeignKeyViolation, "the row references, or is referenced by, another row"
	case err.Code == "23514":
		qe.Kind, qe.Message = tracing.KindCheckViolation, "a value is outside the allowed range"
	case err.Code == "42601":
		qe.Kind, qe.Message = tracing.KindSyntaxError, "the statement is not valid SQL"
	case strings.HasPrefix(err.Code, "08"):
		qe.Kind, qe.Message = tracing.KindConnectivity, "the database connection failed"
	}
	return qe
}

// ErrorKind returns the query error kind of err, or "" if err is nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if qe := ClassifyError(err); qe != nil {
		return qe.Kind
	}
	return tracing.DefaultClassifier(err).Kind
}

func IsUniqueViolation(err error) bool {
	return ErrorKind(err) == tracing.KindUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return ErrorKind(err) == tracing.KindForeignKeyViolation
}
