// Package mediainfo probes attachment files before they are accepted into a
// draft: images are sniffed by decoding their headers, video duration is
// read from the container metadata. This is the client-side counterpart of
// the browser's loadedmetadata probe.
package mediainfo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp" // register WebP decoder

	"twitline/internal/models"
)

// ImageInfo describes a probed image attachment.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// ProbeImage sniffs the image header and returns its format and dimensions.
// Unreadable or unsupported files are a validation error.
func ProbeImage(data []byte) (ImageInfo, error) {
	if isWebP(data) {
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return ImageInfo{}, models.NewValidationError("Unsupported or corrupt image file")
		}
		return ImageInfo{Format: "webp", Width: cfg.Width, Height: cfg.Height}, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, models.NewValidationError("Unsupported or corrupt image file")
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// ProbeVideoDuration reads the duration, in seconds, from an ISO BMFF
// (mp4/mov) container by locating the moov/mvhd box. Files without readable
// movie metadata are a validation error.
func ProbeVideoDuration(data []byte) (float64, error) {
	moov, err := findBox(data, "moov")
	if err != nil {
		return 0, models.NewValidationError("Unsupported or corrupt video file")
	}
	mvhd, err := findBox(moov, "mvhd")
	if err != nil {
		return 0, models.NewValidationError("Unsupported or corrupt video file")
	}
	seconds, err := mvhdDuration(mvhd)
	if err != nil {
		return 0, models.NewValidationError("Unsupported or corrupt video file")
	}
	return seconds, nil
}

var errNoBox = errors.New("box not found")

// findBox walks sibling boxes in data and returns the payload of the first
// box with the given four-character type.
func findBox(data []byte, boxType string) ([]byte, error) {
	offset := 0
	for offset+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		name := string(data[offset+4 : offset+8])
		headerLen := 8

		switch size {
		case 0:
			// Box extends to the end of the data.
			size = len(data) - offset
		case 1:
			if offset+16 > len(data) {
				return nil, errNoBox
			}
			size64 := binary.BigEndian.Uint64(data[offset+8 : offset+16])
			if size64 > uint64(len(data)-offset) {
				return nil, errNoBox
			}
			size = int(size64)
			headerLen = 16
		}

		if size < headerLen || offset+size > len(data) {
			return nil, errNoBox
		}
		if name == boxType {
			return data[offset+headerLen : offset+size], nil
		}
		offset += size
	}
	return nil, errNoBox
}

// mvhdDuration decodes the timescale/duration pair from an mvhd payload.
func mvhdDuration(payload []byte) (float64, error) {
	if len(payload) < 4 {
		return 0, errors.New("mvhd too short")
	}
	version := payload[0]
	body := payload[4:] // skip version + flags

	switch version {
	case 0:
		// creation(4) modification(4) timescale(4) duration(4)
		if len(body) < 16 {
			return 0, errors.New("mvhd v0 too short")
		}
		timescale := binary.BigEndian.Uint32(body[8:12])
		duration := binary.BigEndian.Uint32(body[12:16])
		if timescale == 0 {
			return 0, errors.New("mvhd zero timescale")
		}
		return float64(duration) / float64(timescale), nil
	case 1:
		// creation(8) modification(8) timescale(4) duration(8)
		if len(body) < 28 {
			return 0, errors.New("mvhd v1 too short")
		}
		timescale := binary.BigEndian.Uint32(body[16:20])
		duration := binary.BigEndian.Uint64(body[20:28])
		if timescale == 0 {
			return 0, errors.New("mvhd zero timescale")
		}
		return float64(duration) / float64(timescale), nil
	default:
		return 0, errors.New("unknown mvhd version")
	}
}
