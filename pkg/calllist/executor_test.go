package calllist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializerRunsTasksInOrder(t *testing.T) {
	s := NewSerializer()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		s.Post(func() { got = append(got, i) })
	}
	s.Stop()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerializerStopDrainsQueue(t *testing.T) {
	s := NewSerializer()

	done := make(chan struct{})
	s.Post(func() { close(done) })
	s.Stop()

	select {
	case <-done:
	default:
		t.Fatal("задача не была выполнена до завершения Stop")
	}
}

func TestSerializerPostAfterStopIsDropped(t *testing.T) {
	s := NewSerializer()
	s.Stop()

	// Не должно ни паниковать, ни блокировать
	s.Post(func() { t.Error("задача после Stop не должна выполняться") })
	time.Sleep(10 * time.Millisecond)
}

func TestSerializerDelayedTaskFires(t *testing.T) {
	s := NewSerializer()
	defer s.Stop()

	done := make(chan struct{})
	s.PostDelayed(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("отложенная задача не сработала")
	}
}

func TestDelayedTaskCancelBeforeFire(t *testing.T) {
	s := NewSerializer()
	defer s.Stop()

	task := s.PostDelayed(time.Hour, func() { t.Error("отмененная задача не должна выполняться") })

	assert.True(t, task.Cancel())
	// Повторная отмена — безопасный no-op
	assert.False(t, task.Cancel())
}

func TestManualExecutorAdvanceFiresDueTasksInDueOrder(t *testing.T) {
	m := NewManualExecutor()

	var got []string
	m.PostDelayed(300*time.Millisecond, func() { got = append(got, "late") })
	m.PostDelayed(100*time.Millisecond, func() { got = append(got, "early") })
	m.PostDelayed(200*time.Millisecond, func() { got = append(got, "middle") })

	m.Advance(50 * time.Millisecond)
	assert.Empty(t, got)

	m.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"early", "middle", "late"}, got)
	assert.Zero(t, m.PendingCount())
}

func TestManualExecutorCanceledTaskNotFired(t *testing.T) {
	m := NewManualExecutor()

	task := m.PostDelayed(time.Millisecond, func() { t.Error("отмененная задача не должна выполняться") })
	require.True(t, task.Cancel())
	assert.Zero(t, m.PendingCount())

	m.Advance(time.Second)
}
