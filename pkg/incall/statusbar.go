package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
)

// NotificationKind вид нотификации в статус-баре
type NotificationKind int

const (
	NotificationNone NotificationKind = iota
	NotificationIncoming
	NotificationOngoing
	NotificationOnHold
	NotificationVideoUpgrade
)

// NotificationContent содержимое нотификации статус-бара
type NotificationContent struct {
	Kind       NotificationKind
	CallID     string
	Number     string
	IsVideo    bool
	FullScreen bool
}

// NotificationSurface слой нотификаций платформы
type NotificationSurface interface {
	ShowNotification(content NotificationContent)
	Clear()
}

// StatusBarNotifier ведет нотификацию статус-бара по состоянию приложения.
// Полноэкранный входящий идет через канал UI-событий презентера.
type StatusBarNotifier struct {
	logger  call.StructuredLogger
	list    *calllist.CallList
	surface NotificationSurface

	// Последнее показанное содержимое: повторная публикация того же
	// содержимого подавляется
	current NotificationContent
}

// NewStatusBarNotifier создает нотификатор статус-бара
func NewStatusBarNotifier(list *calllist.CallList, surface NotificationSurface) *StatusBarNotifier {
	return &StatusBarNotifier{
		logger:  call.GetDefaultLogger().WithComponent("statusbar"),
		list:    list,
		surface: surface,
	}
}

// OnStateChange обновляет нотификацию при переходе состояния приложения
func (n *StatusBarNotifier) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
	n.updateNotification(newState, list)
}

// OnFullScreenIncoming показывает полноэкранный входящий
func (n *StatusBarNotifier) OnFullScreenIncoming(c *call.Call) {
	content := NotificationContent{
		Kind:       NotificationIncoming,
		CallID:     c.ID(),
		Number:     c.Number(),
		IsVideo:    c.IsVideoCall(),
		FullScreen: true,
	}
	n.publish(content)
}

// updateNotification выбирает вызов для нотификации и публикует содержимое
func (n *StatusBarNotifier) updateNotification(state InCallState, list *calllist.CallList) {
	c := n.callToShow(list)
	if c == nil || state == InCallStateNoCalls {
		if n.current.Kind != NotificationNone {
			n.current = NotificationContent{}
			n.surface.Clear()
		}
		return
	}

	content := NotificationContent{
		CallID:  c.ID(),
		Number:  c.Number(),
		IsVideo: c.IsVideoCall(),
	}
	switch {
	case c.SessionModificationState() == call.SessionModificationReceivedUpgradeToVideoRequest:
		content.Kind = NotificationVideoUpgrade
	case c.State() == call.StateIncoming || c.State() == call.StateCallWaiting:
		content.Kind = NotificationIncoming
	case c.State() == call.StateOnHold:
		content.Kind = NotificationOnHold
	default:
		content.Kind = NotificationOngoing
	}
	n.publish(content)
}

// callToShow возвращает вызов для нотификации: входящий, иначе исходящий,
// иначе активный или удержанный
func (n *StatusBarNotifier) callToShow(list *calllist.CallList) *call.Call {
	if c := list.GetIncomingCall(); c != nil {
		return c
	}
	if c := list.GetOutgoingCall(); c != nil {
		return c
	}
	return list.GetActiveOrBackgroundCall()
}

func (n *StatusBarNotifier) publish(content NotificationContent) {
	if n.surface == nil || content == n.current {
		return
	}
	n.current = content
	n.surface.ShowNotification(content)
}
