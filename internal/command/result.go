package command

import "net/http"

// Result records the outcome of a configuration update. A result nobody
// marked as failed is successful with status 200.
type Result struct {
	status  int
	message string
	failed  bool
}

func NewResult() *Result {
	return &Result{status: http.StatusOK}
}

func (r *Result) fail(status int, msg string) {
	r.status = status
	r.message = msg
	r.failed = true
}

func (r *Result) Forbidden(msg string) {
	r.fail(http.StatusForbidden, msg)
}

func (r *Result) NotFound(msg string) {
	r.fail(http.StatusNotFound, msg)
}

func (r *Result) Stale(msg string) {
	r.fail(http.StatusPreconditionFailed, msg)
}

func (r *Result) UnprocessableEntity(msg string) {
	r.fail(http.StatusUnprocessableEntity, msg)
}

func (r *Result) BadRequest(msg string) {
	r.fail(http.StatusBadRequest, msg)
}

func (r *Result) Conflict(msg string) {
	r.fail(http.StatusConflict, msg)
}

func (r *Result) InternalServerError(msg string) {
	r.fail(http.StatusInternalServerError, msg)
}

// Reset marks the result successful again. A save that succeeds after an
// earlier validation attempt failed starts from a reset result.
func (r *Result) Reset() {
	*r = Result{status: http.StatusOK}
}

// SetMessage records msg without changing the status.
func (r *Result) SetMessage(msg string) {
	r.message = msg
}

func (r *Result) IsSuccessful() bool {
	return !r.failed
}

func (r *Result) Status() int {
	return r.status
}

func (r *Result) Message() string {
	return r.message
}
