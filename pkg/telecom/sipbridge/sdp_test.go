package sipbridge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/incall/pkg/telecom"
)

func offerSDP(videoLine string) []byte {
	body := "v=0\r\n" +
		"o=- 123 123 IN IP4 192.168.1.10\r\n" +
		"s=call\r\n" +
		"c=IN IP4 192.168.1.10\r\n" +
		"t=0 0\r\n" +
		"m=audio 49170 RTP/AVP 0\r\n" +
		"a=rtpmap:0 PCMU/8000\r\n"
	return []byte(body + videoLine)
}

func TestVideoStateFromSDP(t *testing.T) {
	tests := []struct {
		name  string
		video string
		want  telecom.VideoState
	}{
		{"аудио без видео m-линии", "", telecom.VideoStateAudioOnly},
		{"sendrecv", "m=video 51372 RTP/AVP 96\r\na=sendrecv\r\n", telecom.VideoStateBidirectional},
		{"направление по умолчанию", "m=video 51372 RTP/AVP 96\r\n", telecom.VideoStateBidirectional},
		{"sendonly", "m=video 51372 RTP/AVP 96\r\na=sendonly\r\n", telecom.VideoStateTxEnabled},
		{"recvonly", "m=video 51372 RTP/AVP 96\r\na=recvonly\r\n", telecom.VideoStateRxEnabled},
		{"inactive", "m=video 51372 RTP/AVP 96\r\na=inactive\r\n",
			telecom.VideoStateBidirectional | telecom.VideoStatePaused},
		{"отклоненная видео m-линия", "m=video 0 RTP/AVP 96\r\na=sendrecv\r\n",
			telecom.VideoStateAudioOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VideoStateFromSDP(offerSDP(tt.video))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoStateFromEmptyBody(t *testing.T) {
	got, err := VideoStateFromSDP(nil)
	require.NoError(t, err)
	assert.Equal(t, telecom.VideoStateAudioOnly, got)
}

func TestVideoStateFromGarbageBody(t *testing.T) {
	_, err := VideoStateFromSDP([]byte("not an sdp"))
	assert.Error(t, err)
}

func TestBuildSDPAudioOnly(t *testing.T) {
	body, err := BuildSDP("10.0.0.5", 40000, 40002, telecom.VideoStateAudioOnly)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "m=audio 40000 RTP/AVP 0 8")
	assert.NotContains(t, text, "m=video")
	assert.Contains(t, text, "c=IN IP4 10.0.0.5")
}

func TestBuildSDPVideoDirections(t *testing.T) {
	tests := []struct {
		state telecom.VideoState
		want  string
	}{
		{telecom.VideoStateBidirectional, "a=sendrecv"},
		{telecom.VideoStateTxEnabled, "a=sendonly"},
		{telecom.VideoStateRxEnabled, "a=recvonly"},
		{telecom.VideoStateBidirectional | telecom.VideoStatePaused, "a=inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			body, err := BuildSDP("10.0.0.5", 40000, 40002, tt.state)
			require.NoError(t, err)

			text := string(body)
			require.Contains(t, text, "m=video 40002 RTP/AVP 96")

			videoSection := text[strings.Index(text, "m=video"):]
			assert.Contains(t, videoSection, tt.want)
		})
	}
}

func TestBuildSDPRoundTrip(t *testing.T) {
	for _, state := range []telecom.VideoState{
		telecom.VideoStateAudioOnly,
		telecom.VideoStateBidirectional,
		telecom.VideoStateTxEnabled,
		telecom.VideoStateRxEnabled,
	} {
		t.Run(fmt.Sprintf("%d", state), func(t *testing.T) {
			body, err := BuildSDP("10.0.0.5", 40000, 40002, state)
			require.NoError(t, err)

			got, err := VideoStateFromSDP(body)
			require.NoError(t, err)
			assert.Equal(t, state, got)
		})
	}
}
