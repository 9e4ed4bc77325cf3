package command

import (
	"strings"

	"github.com/haatos/simple-cd/internal/cruise"
)

type operation int

const (
	opCreate operation = iota
	opUpdate
	opDelete
)

// kind describes how commands locate one type of named entity in the
// configuration.
type kind[T any] struct {
	name string
	// list returns the slice holding the entities, or nil when its owner
	// does not exist.
	list func(c *cruise.CruiseConfig, id string) *[]T
	id   func(e *T) string
	node func(e *T) cruise.Validatable
	// inUse returns an error message when the entity cannot be deleted.
	inUse func(c *cruise.CruiseConfig, id string) string
	// replace applies an update to the stored entity. Nil replaces it whole.
	replace func(dst *T, src *T)
	// authorize defaults to requiring a system admin.
	authorize func(b *Base, c *cruise.CruiseConfig, id string) bool
}

func (k *kind[T]) find(c *cruise.CruiseConfig, id string) *T {
	items := k.list(c, id)
	if items == nil {
		return nil
	}
	for i := range *items {
		if strings.EqualFold(k.id(&(*items)[i]), id) {
			return &(*items)[i]
		}
	}
	return nil
}

// entityCommand creates, updates or deletes one entity of kind. Each
// entity type gets its constructors in kinds.go.
type entityCommand[T any] struct {
	Base
	kind   *kind[T]
	op     operation
	id     string
	entity *T
	// checks run in CanContinue after the existence and freshness checks.
	checks []func(c *cruise.CruiseConfig) bool
}

func newCreate[T any](k *kind[T], base Base, entity *T) *entityCommand[T] {
	return &entityCommand[T]{Base: base, kind: k, op: opCreate, id: k.id(entity), entity: entity}
}

func newUpdate[T any](k *kind[T], base Base, id string, entity *T) *entityCommand[T] {
	return &entityCommand[T]{Base: base, kind: k, op: opUpdate, id: id, entity: entity}
}

func newDelete[T any](k *kind[T], base Base, id string) *entityCommand[T] {
	return &entityCommand[T]{Base: base, kind: k, op: opDelete, id: id}
}

func (cmd *entityCommand[T]) withCheck(check func(c *cruise.CruiseConfig) bool) *entityCommand[T] {
	cmd.checks = append(cmd.checks, check)
	return cmd
}

func (cmd *entityCommand[T]) Entity() *T {
	return cmd.entity
}

func (cmd *entityCommand[T]) CanContinue(c *cruise.CruiseConfig) bool {
	if !cmd.authorized(c) {
		return false
	}
	existing := cmd.kind.find(c, cmd.id)
	switch cmd.op {
	case opCreate:
		if existing != nil {
			cmd.Result.UnprocessableEntity(alreadyExistsMessage(cmd.kind.name, cmd.id))
			return false
		}
	case opUpdate:
		if existing == nil {
			cmd.Result.NotFound(notFoundMessage(cmd.kind.name, cmd.id))
			return false
		}
		if !strings.EqualFold(cmd.kind.id(cmd.entity), cmd.id) {
			cmd.Result.UnprocessableEntity(renameMessage(cmd.kind.name))
			return false
		}
		if !cmd.isFreshEntity(cmd.kind.name, cmd.id, existing) {
			return false
		}
	case opDelete:
		if existing == nil {
			cmd.Result.NotFound(notFoundMessage(cmd.kind.name, cmd.id))
			return false
		}
		if cmd.kind.inUse != nil {
			if msg := cmd.kind.inUse(c, cmd.id); msg != "" {
				cmd.Result.UnprocessableEntity(msg)
				return false
			}
		}
		cmd.Preprocessed = cmd.kind.node(existing)
	}
	for _, check := range cmd.checks {
		if !check(c) {
			return false
		}
	}
	return true
}

func (cmd *entityCommand[T]) authorized(c *cruise.CruiseConfig) bool {
	if cmd.kind.authorize != nil {
		return cmd.kind.authorize(&cmd.Base, c, cmd.id)
	}
	return cmd.isUserAdmin(c, cmd.kind.name, cmd.id)
}

func (cmd *entityCommand[T]) Update(modified *cruise.CruiseConfig) error {
	items := cmd.kind.list(modified, cmd.id)
	if items == nil {
		return NewBadRequestError("%s", notFoundMessage(cmd.kind.name, cmd.id))
	}
	switch cmd.op {
	case opCreate:
		*items = append(*items, *cmd.entity)
	case opUpdate:
		existing := cmd.kind.find(modified, cmd.id)
		if existing == nil {
			return NewBadRequestError("%s", notFoundMessage(cmd.kind.name, cmd.id))
		}
		if cmd.kind.replace != nil {
			cmd.kind.replace(existing, cmd.entity)
		} else {
			*existing = *cmd.entity
		}
	case opDelete:
		for i := range *items {
			if strings.EqualFold(cmd.kind.id(&(*items)[i]), cmd.id) {
				*items = append((*items)[:i], (*items)[i+1:]...)
				return nil
			}
		}
		return NewBadRequestError("%s", notFoundMessage(cmd.kind.name, cmd.id))
	}
	return nil
}

func (cmd *entityCommand[T]) IsValid(preprocessed *cruise.CruiseConfig) bool {
	if cmd.op == opDelete {
		return cmd.validate(preprocessed, nil, nil, cmd.kind.name, cmd.id)
	}
	var found cruise.Validatable
	if e := cmd.kind.find(preprocessed, cmd.kind.id(cmd.entity)); e != nil {
		found = cmd.kind.node(e)
	}
	return cmd.validate(preprocessed, found, cmd.kind.node(cmd.entity), cmd.kind.name, cmd.id)
}

func (cmd *entityCommand[T]) ClearErrors() {
	if cmd.entity != nil {
		cruise.ClearAllErrors(cmd.kind.node(cmd.entity))
	}
}
