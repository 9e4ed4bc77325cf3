package cruise

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ConfigErrors maps a field name to the validation messages recorded on it.
type ConfigErrors map[string][]string

func (ce ConfigErrors) Add(field, msg string) ConfigErrors {
	if slices.Contains(ce[field], msg) {
		return ce
	}
	ce[field] = append(ce[field], msg)
	return ce
}

func (ce ConfigErrors) AddAll(other ConfigErrors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			ce.Add(field, msg)
		}
	}
}

func (ce ConfigErrors) On(field string) []string {
	return ce[field]
}

func (ce ConfigErrors) IsEmpty() bool {
	return len(ce) == 0
}

// All returns every message ordered by field name.
func (ce ConfigErrors) All() []string {
	fields := make([]string, 0, len(ce))
	for f := range ce {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]string, 0, len(ce))
	for _, f := range fields {
		out = append(out, ce[f]...)
	}
	return out
}

// meta carries the validation errors of a config node. It is embedded in
// every node and never serialized.
type meta struct {
	errs ConfigErrors
}

func (m *meta) Errors() ConfigErrors {
	if m.errs == nil {
		m.errs = ConfigErrors{}
	}
	return m.errs
}

func (m *meta) AddError(field, msg string) {
	m.Errors().Add(field, msg)
}

func (m *meta) ClearErrors() {
	m.errs = nil
}

func (m *meta) HasErrors() bool {
	return len(m.errs) > 0
}

// InvalidConfigError is returned when a modified configuration does not
// pass validation.
type InvalidConfigError struct {
	Errors []string
}

func (e InvalidConfigError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid configuration"
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Errors, ", "))
}

func NewInvalidConfigError(errs []string) *InvalidConfigError {
	return &InvalidConfigError{Errors: errs}
}
