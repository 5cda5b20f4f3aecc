package composer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"twitline/internal/media"
	"twitline/internal/models"
	"twitline/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUploader is a function-field uploader stub.
type stubUploader struct {
	uploadFn func(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error)
	calls    int
}

func (s *stubUploader) Upload(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error) {
	s.calls++
	if s.uploadFn != nil {
		return s.uploadFn(ctx, filename, content, kind)
	}
	return fmt.Sprintf("https://cdn.example.com/%s", filename), nil
}

// stubActions is a function-field post-store stub.
type stubActions struct {
	createFn func(ctx context.Context, in store.CreatePostInput) (*models.Post, error)
	updateFn func(ctx context.Context, postID uint, in store.UpdatePostInput) (*models.Post, error)
	creates  int
	updates  int
}

func (s *stubActions) CreatePost(ctx context.Context, in store.CreatePostInput) (*models.Post, error) {
	s.creates++
	if s.createFn != nil {
		return s.createFn(ctx, in)
	}
	return &models.Post{ID: 1, Content: in.Content, ImageURLs: in.ImageURLs, VideoURL: in.VideoURL}, nil
}

func (s *stubActions) UpdatePost(ctx context.Context, postID uint, in store.UpdatePostInput) (*models.Post, error) {
	s.updates++
	if s.updateFn != nil {
		return s.updateFn(ctx, postID, in)
	}
	return &models.Post{ID: postID, Content: in.Content}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

// mp4Bytes builds a minimal container whose mvhd reports the given duration.
func mp4Bytes(seconds float64) []byte {
	payload := make([]byte, 4+20)
	binary.BigEndian.PutUint32(payload[12:16], 1000)
	binary.BigEndian.PutUint32(payload[16:20], uint32(seconds*1000))

	mvhd := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(mvhd[0:4], uint32(len(mvhd)))
	copy(mvhd[4:8], "mvhd")
	copy(mvhd[8:], payload)

	moov := make([]byte, 8+len(mvhd))
	binary.BigEndian.PutUint32(moov[0:4], uint32(len(moov)))
	copy(moov[4:8], "moov")
	copy(moov[8:], mvhd)
	return moov
}

func TestSubmitShortContentNeverHitsNetwork(t *testing.T) {
	up := &stubUploader{}
	acts := &stubActions{}
	c := New(up, acts)
	c.SetContent("too short")

	result := c.Submit(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, models.CodeValidation, models.CodeOf(result.Err))
	assert.Zero(t, up.calls)
	assert.Zero(t, acts.creates)
	assert.Equal(t, StateError, c.State())
}

func TestSubmitContentBounds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ok      bool
	}{
		{"empty", "", false},
		{"whitespace only", "              ", false},
		{"nine chars", "123456789", false},
		{"ten chars", "1234567890", true},
		{"five hundred chars", strings.Repeat("a", 500), true},
		{"over five hundred", strings.Repeat("a", 501), false},
		{"padded to length by spaces", "   short   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&stubUploader{}, &stubActions{})
			c.SetContent(tt.content)
			result := c.Submit(context.Background())
			assert.Equal(t, tt.ok, result.Success)
		})
	}
}

func TestAttachImageCap(t *testing.T) {
	c := New(&stubUploader{}, &stubActions{})
	img := pngBytes(t)

	for i := 0; i < models.MaxImages; i++ {
		require.NoError(t, c.AttachImage(fmt.Sprintf("img%d.png", i), img))
	}

	err := c.AttachImage("one-too-many.png", img)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	assert.Len(t, c.Draft().Images, models.MaxImages)
}

func TestAttachImageRejectsGarbage(t *testing.T) {
	c := New(&stubUploader{}, &stubActions{})
	err := c.AttachImage("nope.png", []byte("not an image"))
	require.Error(t, err)
	assert.Empty(t, c.Draft().Images)
}

func TestImagesAndVideoAreExclusive(t *testing.T) {
	img := pngBytes(t)
	vid := mp4Bytes(10)

	c := New(&stubUploader{}, &stubActions{})
	require.NoError(t, c.AttachImage("a.png", img))
	require.Error(t, c.AttachVideo("clip.mp4", vid))

	c2 := New(&stubUploader{}, &stubActions{})
	require.NoError(t, c2.AttachVideo("clip.mp4", vid))
	require.Error(t, c2.AttachImage("a.png", img))
}

func TestAttachVideoDurationCeiling(t *testing.T) {
	c := New(&stubUploader{}, &stubActions{})

	err := c.AttachVideo("long.mp4", mp4Bytes(30.5))
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	assert.Nil(t, c.Draft().Video)

	require.NoError(t, c.AttachVideo("ok.mp4", mp4Bytes(30)))
	require.NotNil(t, c.Draft().Video)
	assert.InDelta(t, 30, c.Draft().Video.Duration, 1e-9)
}

func TestSubmitUploadsEveryImage(t *testing.T) {
	var uploaded []string
	up := &stubUploader{
		uploadFn: func(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error) {
			uploaded = append(uploaded, filename)
			assert.Equal(t, media.KindImage, kind)
			return "https://cdn.example.com/" + filename, nil
		},
	}
	var gotInput store.CreatePostInput
	acts := &stubActions{
		createFn: func(ctx context.Context, in store.CreatePostInput) (*models.Post, error) {
			gotInput = in
			return &models.Post{ID: 1}, nil
		},
	}

	c := New(up, acts)
	c.SetContent("a twit with all three images attached")
	img := pngBytes(t)
	require.NoError(t, c.AttachImage("a.png", img))
	require.NoError(t, c.AttachImage("b.png", img))
	require.NoError(t, c.AttachImage("c.png", img))

	result := c.Submit(context.Background())
	require.True(t, result.Success, "submit failed: %v", result.Err)

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, uploaded)
	assert.Equal(t, []string{
		"https://cdn.example.com/a.png",
		"https://cdn.example.com/b.png",
		"https://cdn.example.com/c.png",
	}, gotInput.ImageURLs)
}

func TestSubmitUploadsVideoWithDuration(t *testing.T) {
	var gotInput store.CreatePostInput
	acts := &stubActions{
		createFn: func(ctx context.Context, in store.CreatePostInput) (*models.Post, error) {
			gotInput = in
			return &models.Post{ID: 1}, nil
		},
	}
	up := &stubUploader{
		uploadFn: func(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error) {
			assert.Equal(t, media.KindVideo, kind)
			return "https://cdn.example.com/clip.mp4", nil
		},
	}

	c := New(up, acts)
	c.SetContent("a twit with a short video")
	require.NoError(t, c.AttachVideo("clip.mp4", mp4Bytes(12)))

	result := c.Submit(context.Background())
	require.True(t, result.Success, "submit failed: %v", result.Err)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", gotInput.VideoURL)
	assert.InDelta(t, 12, gotInput.VideoDuration, 1e-9)
}

func TestSubmitUploadFailurePreservesDraft(t *testing.T) {
	up := &stubUploader{
		uploadFn: func(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error) {
			return "", models.NewUploadError("Upload preset not found", nil)
		},
	}
	acts := &stubActions{}

	c := New(up, acts)
	c.SetContent("a twit whose upload is going to fail")
	require.NoError(t, c.AttachImage("a.png", pngBytes(t)))

	result := c.Submit(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, models.CodeUpload, models.CodeOf(result.Err))
	assert.Equal(t, StateError, c.State())
	assert.Zero(t, acts.creates)

	// Draft survives for retry.
	draft := c.Draft()
	assert.Equal(t, "a twit whose upload is going to fail", draft.Content)
	assert.Len(t, draft.Images, 1)

	// Retry from Error succeeds once the uploader recovers.
	up.uploadFn = nil
	result = c.Submit(context.Background())
	require.True(t, result.Success, "retry failed: %v", result.Err)
	assert.Equal(t, 1, acts.creates)
}

func TestSubmitSuccessClearsDraft(t *testing.T) {
	c := New(&stubUploader{}, &stubActions{})
	c.SetContent("a perfectly valid twit body")

	result := c.Submit(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Err())

	draft := c.Draft()
	assert.Empty(t, draft.Content)
	assert.Empty(t, draft.Images)
	assert.Nil(t, draft.Video)
}

func TestSubmitDispatchesUpdateWhenEditing(t *testing.T) {
	var gotID uint
	acts := &stubActions{
		updateFn: func(ctx context.Context, postID uint, in store.UpdatePostInput) (*models.Post, error) {
			gotID = postID
			return &models.Post{ID: postID, Content: in.Content}, nil
		},
	}
	c := New(&stubUploader{}, acts)
	c.EditPost(models.Post{ID: 14, Content: "original body of the twit"})

	result := c.Submit(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, uint(14), gotID)
	assert.Equal(t, 1, acts.updates)
	assert.Zero(t, acts.creates)
}

func TestSingleSubmissionInFlight(t *testing.T) {
	release := make(chan struct{})
	up := &stubUploader{
		uploadFn: func(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error) {
			<-release
			return "https://cdn.example.com/a.png", nil
		},
	}
	c := New(up, &stubActions{})
	c.SetContent("a twit submitted twice concurrently")
	require.NoError(t, c.AttachImage("a.png", pngBytes(t)))

	done := make(chan Result, 1)
	go func() { done <- c.Submit(context.Background()) }()

	// Wait for the first submission to reach the upload stage.
	require.Eventually(t, func() bool {
		return c.State() == StateUploadingMedia
	}, time.Second, time.Millisecond)

	second := c.Submit(context.Background())
	require.False(t, second.Success)
	assert.Equal(t, models.CodeValidation, models.CodeOf(second.Err))

	close(release)
	first := <-done
	assert.True(t, first.Success, "first submit failed: %v", first.Err)
}
