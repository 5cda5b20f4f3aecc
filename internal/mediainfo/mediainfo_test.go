package mediainfo

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"testing"

	"twitline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestProbeImagePNG(t *testing.T) {
	info, err := ProbeImage(encodePNG(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
}

func TestProbeImageGarbage(t *testing.T) {
	_, err := ProbeImage([]byte("definitely not an image"))
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
}

// box builds a plain ISO BMFF box with the given type and payload.
func box(boxType string, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(payload)))
	copy(out[4:8], boxType)
	copy(out[8:], payload)
	return out
}

func mvhdV0(timescale, duration uint32) []byte {
	payload := make([]byte, 4+20) // version+flags, then creation/modification/timescale/duration/rate
	binary.BigEndian.PutUint32(payload[12:16], timescale)
	binary.BigEndian.PutUint32(payload[16:20], duration)
	return box("mvhd", payload)
}

func mvhdV1(timescale uint32, duration uint64) []byte {
	payload := make([]byte, 4+32)
	payload[0] = 1
	binary.BigEndian.PutUint32(payload[20:24], timescale)
	binary.BigEndian.PutUint64(payload[24:32], duration)
	return box("mvhd", payload)
}

func TestProbeVideoDuration(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{
			name: "version 0",
			data: append(box("ftyp", []byte("isom")), box("moov", mvhdV0(600, 9000))...),
			want: 15,
		},
		{
			name: "version 1",
			data: append(box("ftyp", []byte("isom")), box("moov", mvhdV1(1000, 29500))...),
			want: 29.5,
		},
		{
			name: "mvhd after sibling box",
			data: box("moov", append(box("iods", nil), mvhdV0(100, 3000)...)),
			want: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProbeVideoDuration(tt.data)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProbeVideoDurationInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no moov", box("ftyp", []byte("isom"))},
		{"moov without mvhd", box("moov", box("trak", nil))},
		{"zero timescale", box("moov", mvhdV0(0, 100))},
		{"truncated box header", []byte{0, 0, 0, 200, 'm', 'o', 'o', 'v'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProbeVideoDuration(tt.data)
			require.Error(t, err)
			assert.Equal(t, models.CodeValidation, models.CodeOf(err))
		})
	}
}
