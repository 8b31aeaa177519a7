package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Allows(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleLeader.Allows(CapAssignTask))
	assert.False(t, RoleWorker.Allows(CapAssignTask))
	assert.True(t, RoleWorker.Allows(CapConsumeTasks))
	assert.True(t, RoleCollaborator.Allows(CapParticipateVote))
	assert.False(t, RoleCollaborator.Allows(CapConsumeTasks))
	assert.True(t, RoleMonitor.Allows(CapQueryStats))
	assert.False(t, RoleMonitor.Allows(CapAssignTask))
}

func TestCheck_WorkerAssigningTaskFailsFast(t *testing.T) {
	t.Parallel()

	err := Check(RoleWorker, CapAssignTask)
	require.Error(t, err)
}

func TestValidRole(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidRole(RoleLeader))
	assert.True(t, ValidRole(RoleMonitor))
	assert.False(t, ValidRole(Role("supervisor")))
}
