// Package calllist реализует реестр вызовов in-call приложения.
//
// Реестр и все его потребители работают в одном сериализованном контексте:
// события телефонии, действия пользователя и срабатывания таймеров
// выполняются одной горутиной Serializer. Конкурентная мутация реестра из
// нескольких горутин не поддерживается.
package calllist

import (
	"sync"
	"sync/atomic"
	"time"
)

// Executor сериализованный исполнитель задач ядра.
//
// Post ставит задачу в очередь единственной горутины-владельца; PostDelayed
// ставит задачу с задержкой и возвращает отменяемый дескриптор. Задача,
// отмененная после срабатывания, и срабатывание после отмены — безопасные
// no-op.
type Executor interface {
	Post(task func())
	PostDelayed(delay time.Duration, task func()) *DelayedTask
}

// DelayedTask дескриптор отложенной задачи
type DelayedTask struct {
	timer   *time.Timer
	handled atomic.Bool
}

// Cancel отменяет задачу. Возвращает false, если задача уже выполнена
// или уже отменена.
func (t *DelayedTask) Cancel() bool {
	if !t.handled.CompareAndSwap(false, true) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// tryFire атомарно помечает задачу выполненной
func (t *DelayedTask) tryFire() bool {
	return t.handled.CompareAndSwap(false, true)
}

// Serializer однопоточный цикл событий ядра.
//
// Все мутации CallList и машины состояний должны проходить через Post:
// это единственная потокобезопасная точка входа в ядро.
type Serializer struct {
	tasks   chan func()
	quit    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewSerializer создает и запускает сериализатор
func NewSerializer() *Serializer {
	s := &Serializer{
		tasks: make(chan func(), 256),
		quit:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Serializer) loop() {
	defer s.wg.Done()
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.quit:
			// Дообработка уже поставленных задач
			for {
				select {
				case task := <-s.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post ставит задачу в очередь исполнителя.
// После Stop задачи молча отбрасываются.
func (s *Serializer) Post(task func()) {
	select {
	case s.tasks <- task:
	case <-s.quit:
	}
}

// PostDelayed ставит задачу с задержкой. Срабатывание таймера лишь
// переносит задачу в общую очередь: выполняется она той же горутиной,
// что и остальные события.
func (s *Serializer) PostDelayed(delay time.Duration, task func()) *DelayedTask {
	dt := &DelayedTask{}
	dt.timer = time.AfterFunc(delay, func() {
		if !dt.tryFire() {
			return
		}
		s.Post(task)
	})
	return dt
}

// Stop останавливает цикл, дообработав уже поставленные задачи
func (s *Serializer) Stop() {
	s.stopped.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}

// ManualExecutor детерминированный исполнитель для тестов: Post выполняет
// задачу немедленно в горутине вызывающего, отложенные задачи копятся и
// срабатывают только по Advance с ручным часами.
type ManualExecutor struct {
	now     time.Time
	pending []*manualTask
}

type manualTask struct {
	due    time.Time
	task   func()
	handle *DelayedTask
}

// NewManualExecutor создает ручной исполнитель
func NewManualExecutor() *ManualExecutor {
	return &ManualExecutor{now: time.Unix(0, 0)}
}

// Post выполняет задачу немедленно
func (m *ManualExecutor) Post(task func()) {
	task()
}

// PostDelayed откладывает задачу до Advance на соответствующий интервал
func (m *ManualExecutor) PostDelayed(delay time.Duration, task func()) *DelayedTask {
	handle := &DelayedTask{}
	m.pending = append(m.pending, &manualTask{
		due:    m.now.Add(delay),
		task:   task,
		handle: handle,
	})
	return handle
}

// Advance продвигает часы и выполняет все созревшие задачи в порядке
// срока срабатывания
func (m *ManualExecutor) Advance(d time.Duration) {
	m.now = m.now.Add(d)
	for {
		idx := -1
		for i, t := range m.pending {
			if !t.due.After(m.now) && (idx == -1 || t.due.Before(m.pending[idx].due)) {
				idx = i
			}
		}
		if idx == -1 {
			return
		}
		t := m.pending[idx]
		m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
		if t.handle.tryFire() {
			t.task()
		}
	}
}

// PendingCount возвращает число несработавших отложенных задач
func (m *ManualExecutor) PendingCount() int {
	n := 0
	for _, t := range m.pending {
		if !t.handle.handled.Load() {
			n++
		}
	}
	return n
}
