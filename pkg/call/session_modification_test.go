package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerGenericTransitions(t *testing.T) {
	tr := newSessionModificationTracker()
	require.Equal(t, SessionModificationNoRequest, tr.Current())

	changed, err := tr.Set(SessionModificationWaitingForResponse)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SessionModificationWaitingForResponse, tr.Current())

	// Новый запрос перезаписывает старый, очереди нет
	changed, err = tr.Set(SessionModificationRequestRejected)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SessionModificationRequestRejected, tr.Current())
}

func TestTrackerSameValueIsNoOp(t *testing.T) {
	tr := newSessionModificationTracker()

	changed, err := tr.Set(SessionModificationNoRequest)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTrackerReceivedOnlyThroughOffer(t *testing.T) {
	tr := newSessionModificationTracker()

	_, err := tr.Set(SessionModificationReceivedUpgradeToVideoRequest)
	require.Error(t, err)
	assert.Equal(t, SessionModificationNoRequest, tr.Current())

	changed, err := tr.Offer()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SessionModificationReceivedUpgradeToVideoRequest, tr.Current())

	// Повторный offer в том же состоянии — no-op
	changed, err = tr.Offer()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTrackerLeavesReceivedThroughGenericSet(t *testing.T) {
	tr := newSessionModificationTracker()
	_, err := tr.Offer()
	require.NoError(t, err)

	changed, err := tr.Set(SessionModificationUpgradeToVideoRequestTimedOut)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SessionModificationUpgradeToVideoRequestTimedOut, tr.Current())
}
