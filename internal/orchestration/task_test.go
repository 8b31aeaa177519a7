package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/agentfleet/internal/envelope"
)

func TestRetryDelayMS_DoublesPerAttemptUpToCap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, retryBaseDelayMS, retryDelayMS(1))
	assert.Equal(t, retryBaseDelayMS*2, retryDelayMS(2))
	assert.Equal(t, retryBaseDelayMS*4, retryDelayMS(3))
	assert.Equal(t, retryMaxDelayMS, retryDelayMS(20))
}

func TestQueueForPriority(t *testing.T) {
	t.Parallel()

	cases := map[envelope.Priority]string{
		envelope.PriorityCritical: QueueTasks + ".critical",
		envelope.PriorityHigh:     QueueTasks + ".high",
		envelope.PriorityNormal:   QueueTasks + ".normal",
		envelope.PriorityLow:      QueueTasks + ".low",
		envelope.Priority(""):     QueueTasks + ".normal",
	}
	for priority, want := range cases {
		assert.Equal(t, want, queueForPriority(priority))
	}
}

func TestHandlerResult_OkAndFailed(t *testing.T) {
	t.Parallel()

	ok := Ok()
	assert.True(t, ok.success())

	failed := Failed(ErrorPermanent, assert.AnError)
	assert.False(t, failed.success())
	assert.Equal(t, ErrorPermanent, failed.Kind)
	assert.ErrorIs(t, failed.Err, assert.AnError)
}
