package command

import (
	"fmt"
	"strings"
)

// BadRequestError is returned from Update when the request cannot be
// applied to the configuration as given.
type BadRequestError struct {
	Message string
}

func (e BadRequestError) Error() string {
	return e.Message
}

func NewBadRequestError(format string, args ...any) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

func notFoundMessage(kind, id string) string {
	return fmt.Sprintf("%s '%s' was not found!", capitalize(kind), id)
}

func alreadyExistsMessage(kind, id string) string {
	return fmt.Sprintf("Failed to add %s '%s'. Another %s with the same name already exists.", kind, id, kind)
}

func staleMessage(kind, id string) string {
	return fmt.Sprintf(
		"Someone has modified the configuration for %s '%s'. Please update your copy of the config with the changes and try again.",
		capitalize(kind), id,
	)
}

func forbiddenMessage(user, kind, id string) string {
	return fmt.Sprintf("User '%s' does not have permission to edit %s '%s'.", user, kind, id)
}

func validationFailedMessage(kind, id string, errs []string) string {
	return fmt.Sprintf(
		"Validations failed for %s '%s'. Error(s): [%s]. Please correct and resubmit.",
		kind, id, strings.Join(errs, ", "),
	)
}

func inUseMessage(kind, id, usedBy string, users []string) string {
	return fmt.Sprintf("Cannot delete %s '%s' as it is used by %s: '[%s]'", kind, id, usedBy, strings.Join(users, ", "))
}

func renameMessage(kind string) string {
	return fmt.Sprintf("Renaming of %s is not supported by this API.", kind)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
