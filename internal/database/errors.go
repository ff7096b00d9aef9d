package database

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrTeamNotFound is returned when no team matches the requested id.
	ErrTeamNotFound = errors.New("team not found")
	// ErrRoleButtonInterfaceNotFound is returned when no interface matches the guild and name.
	ErrRoleButtonInterfaceNotFound = errors.New("role button interface not found")
	// ErrUniqueViolation is returned when an insert or update collides with a uniqueness constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation pq.ErrorCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
