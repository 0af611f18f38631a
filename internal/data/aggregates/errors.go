package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/cms-backend/internal/domain/aggregates"
)

// Tags attached to errors raised inside a write body. MapError turns them
// into coded domain errors once the transaction has ended.
var (
	ErrValidation = errors.New("aggregate validation")
	ErrInvariant  = errors.New("aggregate invariant violation")
	ErrConflict   = errors.New("aggregate conflict")
	ErrRetryable  = errors.New("aggregate retryable")
)

func tagged(tag error, msg string) error {
	return errors.Join(tag, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

type sentinelCode struct {
	target error
	code   domainagg.ErrorCode
}

// Checked in order; the first errors.Is match wins.
var sentinelCodes = []sentinelCode{
	{ErrValidation, domainagg.CodeValidation},
	{ErrInvariant, domainagg.CodeInvariantViolation},
	{domainagg.ErrCycleDetected, domainagg.CodeInvariantViolation},
	{domainagg.ErrInvalidTaxonomyRelation, domainagg.CodePreconditionFailed},
	{domainagg.ErrSelfEmbed, domainagg.CodePreconditionFailed},
	{domainagg.ErrHasChildren, domainagg.CodePreconditionFailed},
	{domainagg.ErrParentNotGroup, domainagg.CodePreconditionFailed},
	{domainagg.ErrMaterializedPath, domainagg.CodePreconditionFailed},
	{ErrConflict, domainagg.CodeConflict},
	{ErrRetryable, domainagg.CodeRetryable},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{gorm.ErrDuplicatedKey, domainagg.CodeConflict},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

var sqlStateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// Drivers without typed errors (sqlite) are classified by message.
var messageCodes = []struct {
	fragments []string
	code      domainagg.ErrorCode
}{
	{[]string{"duplicate key", "already exists", "unique constraint failed"}, domainagg.CodeConflict},
	{[]string{"deadlock", "serialization", "database is locked", "timeout", "temporar"}, domainagg.CodeRetryable},
}

// MapError maps infrastructure and domain failures into aggregate error codes.
// Errors that already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domainagg.Error
	if errors.As(err, &coded) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.target) {
			return s.code
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := sqlStateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messageCodes {
		for _, f := range m.fragments {
			if strings.Contains(msg, f) {
				return m.code
			}
		}
	}
	return domainagg.CodeInternal
}

func notFound(op, what string, id uuid.UUID) error {
	return domainagg.NotFoundError(op, fmt.Sprintf("%s not found: %s", what, id))
}
