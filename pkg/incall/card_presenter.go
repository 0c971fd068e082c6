package incall

import (
	"github.com/arzzra/incall/pkg/call"
	"github.com/arzzra/incall/pkg/calllist"
)

// ContactInfo данные контакта для карточки вызова
type ContactInfo struct {
	Name     string
	Number   string
	Label    string
	Location string
}

// ContactLookup внешний коллаборатор поиска контактов.
//
// Callback вызывается синхронно с best-effort данными из кэша и,
// возможно, второй раз позже с уточненными данными; допускается ноль,
// один или два вызова на запрос.
type ContactLookup interface {
	FindInfo(c *call.Call, isIncoming bool, callback func(callID string, info ContactInfo))
}

// CardSurface UI-слой карточки вызова
type CardSurface interface {
	SetPrimary(callID string, info ContactInfo, state call.State)
	SetSecondary(callID string, info ContactInfo)
	ClearSecondary()
	SetCallState(state call.State, videoState int)
}

// CallCardPresenter ведет главную и вторичную карточку вызова.
//
// Ответы поиска контактов могут прийти после того, как вызов уже покинул
// реестр или перестал быть главным: устаревший ответ отбрасывается
// проверкой идентификатора, это тихий no-op.
type CallCardPresenter struct {
	logger  call.StructuredLogger
	list    *calllist.CallList
	lookup  ContactLookup
	surface CardSurface

	primary   *call.Call
	secondary *call.Call
}

// NewCallCardPresenter создает презентер карточки
func NewCallCardPresenter(list *calllist.CallList, lookup ContactLookup, surface CardSurface) *CallCardPresenter {
	return &CallCardPresenter{
		logger:  call.GetDefaultLogger().WithComponent("card"),
		list:    list,
		lookup:  lookup,
		surface: surface,
	}
}

// OnStateChange пересчитывает главный и вторичный вызовы карточки
func (cp *CallCardPresenter) OnStateChange(oldState, newState InCallState, list *calllist.CallList) {
	var primary, secondary *call.Call

	switch newState {
	case InCallStateIncoming:
		primary = list.GetIncomingCall()
	case InCallStatePendingOutgoing, InCallStateOutgoing:
		primary = list.GetOutgoingCall()
		if primary == nil {
			primary = list.GetPendingOutgoingCall()
		}
		// Завершенные вызовы вторичную карточку не занимают
		secondary = GetCallToDisplay(list, nil, true)
	case InCallStateInCall:
		primary = GetCallToDisplay(list, nil, false)
		secondary = GetCallToDisplay(list, primary, true)
	}

	cp.updatePrimary(primary, newState == InCallStateIncoming)
	cp.updateSecondary(secondary)

	if primary != nil && cp.surface != nil {
		cp.surface.SetCallState(primary.State(), int(primary.VideoState()))
	}
}

// OnIncomingCall переводит карточку на входящий через обычный пересчет
func (cp *CallCardPresenter) OnIncomingCall(oldState, newState InCallState, c *call.Call) {
	cp.OnStateChange(oldState, newState, cp.list)
}

// OnDetailsChanged обновляет карточку при изменении деталей главного вызова
func (cp *CallCardPresenter) OnDetailsChanged(c *call.Call) {
	if !call.AreSame(cp.primary, c) {
		return
	}
	if cp.surface != nil {
		cp.surface.SetCallState(c.State(), int(c.VideoState()))
	}
}

// OnCallChanged обновляет состояние карточки при изменении главного вызова
func (cp *CallCardPresenter) OnCallChanged(c *call.Call) {
	if call.AreSame(cp.primary, c) && cp.surface != nil {
		cp.surface.SetCallState(c.State(), int(c.VideoState()))
	}
}

// OnSessionModificationChange входит в контракт per-call слушателя
func (cp *CallCardPresenter) OnSessionModificationChange(state call.SessionModificationState) {}

// OnLastForwardedNumberChange обновляет карточку: показанный номер
// переадресации мог измениться
func (cp *CallCardPresenter) OnLastForwardedNumberChange() {
	if cp.primary != nil {
		cp.requestContactInfo(cp.primary, false)
	}
}

// OnChildNumberChange обновляет карточку: показанный дочерний номер
// мог измениться
func (cp *CallCardPresenter) OnChildNumberChange() {
	if cp.primary != nil {
		cp.requestContactInfo(cp.primary, false)
	}
}

func (cp *CallCardPresenter) updatePrimary(primary *call.Call, isIncoming bool) {
	if call.AreSame(cp.primary, primary) {
		return
	}

	if cp.primary != nil {
		cp.list.RemoveCallUpdateListener(cp.primary.ID(), cp)
	}
	cp.primary = primary
	if primary == nil {
		return
	}

	cp.list.AddCallUpdateListener(primary.ID(), cp)
	cp.requestContactInfo(primary, isIncoming)
}

func (cp *CallCardPresenter) updateSecondary(secondary *call.Call) {
	if call.AreSame(cp.secondary, secondary) {
		return
	}
	cp.secondary = secondary
	if cp.surface == nil {
		return
	}
	if secondary == nil {
		cp.surface.ClearSecondary()
		return
	}

	expectedID := secondary.ID()
	cp.lookup.FindInfo(secondary, false, func(callID string, info ContactInfo) {
		if cp.secondary == nil || cp.secondary.ID() != callID || callID != expectedID {
			cp.logger.Debug("устаревший ответ поиска контакта отброшен",
				call.String("call_id", callID))
			return
		}
		cp.surface.SetSecondary(callID, info)
	})
}

func (cp *CallCardPresenter) requestContactInfo(c *call.Call, isIncoming bool) {
	if cp.lookup == nil || cp.surface == nil {
		return
	}
	expectedID := c.ID()
	cp.lookup.FindInfo(c, isIncoming, func(callID string, info ContactInfo) {
		// Ответ может прийти и после смены главного вызова
		if cp.primary == nil || cp.primary.ID() != callID || callID != expectedID {
			cp.logger.Debug("устаревший ответ поиска контакта отброшен",
				call.String("call_id", callID))
			return
		}
		cp.surface.SetPrimary(callID, info, cp.primary.State())
	})
}
