package service

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/command"
	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
)

type MockConfigDao struct {
	mock.Mock
}

func (m *MockConfigDao) UpdateConfig(cmd configstore.EntityConfigUpdateCommand, user cruise.Username) error {
	return m.Called(cmd, user).Error(0)
}

func (m *MockConfigDao) CurrentConfig() *cruise.CruiseConfig {
	return m.Called().Get(0).(*cruise.CruiseConfig)
}

func (m *MockConfigDao) MergedConfigForEdit() *cruise.CruiseConfig {
	return m.Called().Get(0).(*cruise.CruiseConfig)
}

func TestConfigUpdater_Update(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		prepare     func(r *command.Result)
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "success - message is set",
			wantStatus:  http.StatusOK,
			wantMessage: "saved",
		},
		{
			name:        "success - earlier failure is cleared",
			prepare:     func(r *command.Result) { r.UnprocessableEntity("first attempt") },
			wantStatus:  http.StatusOK,
			wantMessage: "saved",
		},
		{
			name:        "failure - check failed keeps the reason",
			err:         configstore.ConfigUpdateCheckFailedError{},
			prepare:     func(r *command.Result) { r.Forbidden("not allowed") },
			wantStatus:  http.StatusForbidden,
			wantMessage: "not allowed",
		},
		{
			name:        "failure - check failed without a reason",
			err:         configstore.ConfigUpdateCheckFailedError{},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "Save failed. The update was rejected.",
		},
		{
			name:        "failure - invalid config",
			err:         &cruise.InvalidConfigError{Errors: []string{"a", "b"}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantMessage: "Validations failed. Error(s): [a, b]. Please correct and resubmit.",
		},
		{
			name:       "failure - file changed underneath",
			err:        &configstore.ConfigFileHasChangedError{Expected: "x", Actual: "y"},
			wantStatus: http.StatusPreconditionFailed,
		},
		{
			name:        "failure - bad request",
			err:         command.NewBadRequestError("missing %s", "thing"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "missing thing",
		},
		{
			name:        "failure - unexpected error",
			err:         errors.New("disk full"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Save failed. disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			dao := new(MockConfigDao)
			dao.On("UpdateConfig", mock.Anything, alice).Return(tt.err)
			updater := NewConfigUpdater(dao, zap.NewNop())
			result := command.NewResult()
			if tt.prepare != nil {
				tt.prepare(result)
			}

			// act
			updater.Update(nil, alice, result, "saved")

			// assert
			assert.Equal(t, tt.wantStatus, result.Status())
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, result.Message())
			}
		})
	}
}
