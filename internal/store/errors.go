package store

import (
	"database/sql"
	"errors"
	"fmt"
)

type RecordNotFoundError struct {
	Entity string
	ID     any
}

func (e RecordNotFoundError) Error() string {
	return fmt.Sprintf("%s '%v' was not found", e.Entity, e.ID)
}

func IsRecordNotFound(err error) bool {
	var nf RecordNotFoundError
	return errors.As(err, &nf)
}

// notFound converts sql.ErrNoRows into a RecordNotFoundError.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return RecordNotFoundError{Entity: entity, ID: id}
	}
	return err
}
