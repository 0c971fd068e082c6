// Package sipbridge связывает SIP-стек с контрактами телефонного слоя:
// события sipgo превращаются в обновления telecom.TelecomCall, а команды
// telecom.TelecomAdapter — в SIP-транзакции.
package sipbridge

import (
	"fmt"
	"time"

	"github.com/pion/sdp/v3"

	"github.com/arzzra/incall/pkg/telecom"
)

// VideoStateFromSDP выводит битовую маску видео-состояния из SDP.
//
// Направление берется из атрибутов видео m-линии; m-линия с нулевым
// портом считается отклоненной. Отсутствие видео m-линии — чистое аудио.
func VideoStateFromSDP(body []byte) (telecom.VideoState, error) {
	if len(body) == 0 {
		return telecom.VideoStateAudioOnly, nil
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return telecom.VideoStateAudioOnly, fmt.Errorf("ошибка разбора SDP: %w", err)
	}

	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media != "video" || media.MediaName.Port.Value == 0 {
			continue
		}

		// Без явного атрибута направление по умолчанию sendrecv
		direction := "sendrecv"
		for _, attr := range media.Attributes {
			switch attr.Key {
			case "sendrecv", "sendonly", "recvonly", "inactive":
				direction = attr.Key
			}
		}

		switch direction {
		case "sendonly":
			return telecom.VideoStateTxEnabled, nil
		case "recvonly":
			return telecom.VideoStateRxEnabled, nil
		case "inactive":
			return telecom.VideoStateBidirectional | telecom.VideoStatePaused, nil
		default:
			return telecom.VideoStateBidirectional, nil
		}
	}

	return telecom.VideoStateAudioOnly, nil
}

// BuildSDP строит SDP для ответа или re-INVITE с заданным видео-состоянием
func BuildSDP(host string, audioPort, videoPort int, videoState telecom.VideoState) ([]byte, error) {
	sessionID := uint64(time.Now().Unix())
	desc := sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: host,
		},
		SessionName: "incall",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: host},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	audio := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "audio",
			Port:    sdp.RangedPort{Value: audioPort},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{"0", "8"},
		},
		Attributes: []sdp.Attribute{
			sdp.NewAttribute("rtpmap", "0 PCMU/8000"),
			sdp.NewAttribute("rtpmap", "8 PCMA/8000"),
			sdp.NewPropertyAttribute("sendrecv"),
		},
	}
	desc.MediaDescriptions = append(desc.MediaDescriptions, audio)

	if videoState.IsVideo() {
		video := &sdp.MediaDescription{
			MediaName: sdp.MediaName{
				Media:   "video",
				Port:    sdp.RangedPort{Value: videoPort},
				Protos:  []string{"RTP", "AVP"},
				Formats: []string{"96"},
			},
			Attributes: []sdp.Attribute{
				sdp.NewAttribute("rtpmap", "96 H264/90000"),
				sdp.NewPropertyAttribute(videoDirection(videoState)),
			},
		}
		desc.MediaDescriptions = append(desc.MediaDescriptions, video)
	}

	body, err := desc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации SDP: %w", err)
	}
	return body, nil
}

// videoDirection возвращает атрибут направления видео m-линии
func videoDirection(videoState telecom.VideoState) string {
	switch {
	case videoState.IsPaused():
		return "inactive"
	case videoState.IsBidirectional():
		return "sendrecv"
	case videoState&telecom.VideoStateTxEnabled != 0:
		return "sendonly"
	case videoState&telecom.VideoStateRxEnabled != 0:
		return "recvonly"
	default:
		return "inactive"
	}
}
