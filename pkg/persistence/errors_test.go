package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/stageflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		automationErr := persistence.NewAutomationError("GetVersion", "auto-123", persistence.ErrVersionNotFound)
		runErr := persistence.NewRunError("GetRun", "run-9", persistence.ErrRunNotFound)

		assert.True(t, persistence.IsVersionNotFound(automationErr))
		assert.False(t, persistence.IsAutomationNotFound(automationErr))
		assert.True(t, persistence.IsRunNotFound(runErr))

		assert.True(t, errors.Is(automationErr, persistence.ErrVersionNotFound))
		assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", runErr), persistence.ErrRunNotFound))
	})

	t.Run("automation error contains context", func(t *testing.T) {
		err := persistence.NewAutomationError("SetPublishedVersion", "auto-123", persistence.ErrAutomationNotFound)

		assert.Contains(t, err.Error(), "SetPublishedVersion")
		assert.Contains(t, err.Error(), "auto-123")
		assert.Contains(t, err.Error(), "automation not found")
	})

	t.Run("is not found", func(t *testing.T) {
		assert.True(t, persistence.IsNotFound(persistence.ErrJobNotFound))
		assert.True(t, persistence.IsNotFound(persistence.NewAutomationError("GetTrigger", "a", persistence.ErrTriggerNotFound)))
		assert.False(t, persistence.IsNotFound(persistence.ErrStageNotInWorkflow))
		assert.False(t, persistence.IsNotFound(nil))
	})
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, persistence.DefaultLimit, persistence.NormalizeLimit(0))
	assert.Equal(t, persistence.DefaultLimit, persistence.NormalizeLimit(-3))
	assert.Equal(t, persistence.DefaultLimit, persistence.NormalizeLimit(500))
	assert.Equal(t, 50, persistence.NormalizeLimit(50))
}
