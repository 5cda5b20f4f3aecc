// Package composer implements the client-side submission controller: draft
// state for a post under composition, validation of content and attachments,
// media upload orchestration, and dispatch into the post store. One composer
// instance backs one compose view; only one submission may be in flight.
package composer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"twitline/internal/media"
	"twitline/internal/mediainfo"
	"twitline/internal/models"
	"twitline/internal/store"
)

// State is the submission lifecycle state.
type State int

// Submission states. Transitions: Idle → Validating → UploadingMedia →
// Submitting → Idle on success; any state may fall to Error, which preserves
// the draft for retry.
const (
	StateIdle State = iota
	StateValidating
	StateUploadingMedia
	StateSubmitting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateUploadingMedia:
		return "uploading_media"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Attachment is a media file selected into the draft.
type Attachment struct {
	Name     string
	Content  []byte
	Duration float64 // seconds; videos only
}

// Draft is the transient composition state. It exists only while composing
// and is discarded on successful submit or on Reset.
type Draft struct {
	Content       string
	Images        []Attachment
	Video         *Attachment
	EditingPostID uint // non-zero when editing an existing post
}

// Uploader resolves an attachment into a durable hosted URL.
// *media.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte, kind media.Kind) (string, error)
}

// Actions is the post-store surface the composer dispatches into.
// *store.PostStore satisfies it.
type Actions interface {
	CreatePost(ctx context.Context, in store.CreatePostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, postID uint, in store.UpdatePostInput) (*models.Post, error)
}

// Result is the uniform submission outcome handed to the view.
type Result struct {
	Success bool
	Post    *models.Post
	Err     error
}

// Composer coordinates validation, media upload and submission for one
// compose view. Safe for concurrent use.
type Composer struct {
	uploader Uploader
	actions  Actions

	mu    sync.Mutex
	state State
	draft Draft
	last  error
}

// New creates an idle composer.
func New(uploader Uploader, actions Actions) *Composer {
	return &Composer{uploader: uploader, actions: actions}
}

// State returns the current submission state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error from the last failed submission, if any.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Draft returns a snapshot of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.Images = append([]Attachment(nil), c.draft.Images...)
	if c.draft.Video != nil {
		v := *c.draft.Video
		d.Video = &v
	}
	return d
}

// SetContent replaces the draft text.
func (c *Composer) SetContent(content string) {
	c.mu.Lock()
	c.draft.Content = content
	c.mu.Unlock()
}

// EditPost loads an existing post into the draft for an update submission.
func (c *Composer) EditPost(post models.Post) {
	c.mu.Lock()
	c.draft = Draft{Content: post.Content, EditingPostID: post.ID}
	c.state = StateIdle
	c.last = nil
	c.mu.Unlock()
}

// AttachImage validates and adds an image to the draft. Rejected before any
// upload call when the image cap is exceeded, a video is already attached,
// or the file is not a readable image.
func (c *Composer) AttachImage(name string, content []byte) error {
	if _, err := mediainfo.ProbeImage(content); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.Video != nil {
		return models.NewValidationError("You cannot attach both images and a video to the same post")
	}
	if len(c.draft.Images) >= models.MaxImages {
		return models.NewValidationError(fmt.Sprintf("You can attach at most %d images per post", models.MaxImages))
	}
	c.draft.Images = append(c.draft.Images, Attachment{Name: name, Content: content})
	return nil
}

// AttachVideo validates and adds the draft's single video. The duration is
// probed from the file metadata before acceptance; videos over the ceiling
// never enter the draft.
func (c *Composer) AttachVideo(name string, content []byte) error {
	duration, err := mediainfo.ProbeVideoDuration(content)
	if err != nil {
		return err
	}
	if duration > models.MaxVideoSeconds {
		return models.NewValidationError(fmt.Sprintf("Video duration must not exceed %d seconds", models.MaxVideoSeconds))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.draft.Images) > 0 {
		return models.NewValidationError("You cannot attach both images and a video to the same post")
	}
	if c.draft.Video != nil {
		return models.NewValidationError("Only one video can be attached per post")
	}
	c.draft.Video = &Attachment{Name: name, Content: content, Duration: duration}
	return nil
}

// RemoveImage drops the image at index i from the draft.
func (c *Composer) RemoveImage(i int) {
	c.mu.Lock()
	if i >= 0 && i < len(c.draft.Images) {
		c.draft.Images = append(c.draft.Images[:i], c.draft.Images[i+1:]...)
	}
	c.mu.Unlock()
}

// RemoveVideo drops the draft's video.
func (c *Composer) RemoveVideo() {
	c.mu.Lock()
	c.draft.Video = nil
	c.mu.Unlock()
}

// Reset discards the draft and returns to Idle.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.draft = Draft{}
	c.state = StateIdle
	c.last = nil
	c.mu.Unlock()
}

// Submit validates the draft, uploads every attached media file, and
// dispatches the create (or update) action. On success the draft is cleared;
// on failure it is preserved so the user can retry. The submit control must
// be disabled while the composer is not Idle.
func (c *Composer) Submit(ctx context.Context) Result {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateError {
		c.mu.Unlock()
		return Result{Err: models.NewValidationError("A submission is already in flight")}
	}
	c.state = StateValidating
	draft := c.draft
	c.mu.Unlock()

	if err := validateDraft(draft); err != nil {
		return c.fail(err)
	}

	content := strings.TrimSpace(draft.Content)

	var imageURLs []string
	var videoURL string
	if len(draft.Images) > 0 || draft.Video != nil {
		c.setState(StateUploadingMedia)
		// Every attached image is uploaded, not just the first.
		for _, img := range draft.Images {
			url, err := c.uploader.Upload(ctx, img.Name, img.Content, media.KindImage)
			if err != nil {
				return c.fail(err)
			}
			imageURLs = append(imageURLs, url)
		}
		if draft.Video != nil {
			url, err := c.uploader.Upload(ctx, draft.Video.Name, draft.Video.Content, media.KindVideo)
			if err != nil {
				return c.fail(err)
			}
			videoURL = url
		}
	}

	c.setState(StateSubmitting)

	var post *models.Post
	var err error
	if draft.EditingPostID != 0 {
		post, err = c.actions.UpdatePost(ctx, draft.EditingPostID, store.UpdatePostInput{
			Content:       content,
			ImageURLs:     imageURLs,
			VideoURL:      videoURL,
			VideoDuration: videoDuration(draft),
		})
	} else {
		post, err = c.actions.CreatePost(ctx, store.CreatePostInput{
			Content:       content,
			ImageURLs:     imageURLs,
			VideoURL:      videoURL,
			VideoDuration: videoDuration(draft),
		})
	}
	if err != nil {
		return c.fail(err)
	}

	// Success: discard the draft.
	c.mu.Lock()
	c.draft = Draft{}
	c.state = StateIdle
	c.last = nil
	c.mu.Unlock()
	return Result{Success: true, Post: post}
}

func videoDuration(d Draft) float64 {
	if d.Video != nil {
		return d.Video.Duration
	}
	return 0
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// fail records the error, preserves the draft, and surfaces the uniform
// failure result.
func (c *Composer) fail(err error) Result {
	c.mu.Lock()
	c.state = StateError
	c.last = err
	c.mu.Unlock()
	return Result{Err: err}
}

// validateDraft enforces the composition rules before any network call.
func validateDraft(d Draft) error {
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return models.NewValidationError("Please enter a post description")
	}
	length := utf8.RuneCountInString(content)
	if length < models.MinContentLength {
		return models.NewValidationError(fmt.Sprintf("Description must be at least %d characters", models.MinContentLength))
	}
	if length > models.MaxContentLength {
		return models.NewValidationError(fmt.Sprintf("Description cannot exceed %d characters", models.MaxContentLength))
	}
	if len(d.Images) > 0 && d.Video != nil {
		return models.NewValidationError("You cannot attach both images and a video to the same post")
	}
	if len(d.Images) > models.MaxImages {
		return models.NewValidationError(fmt.Sprintf("You can attach at most %d images per post", models.MaxImages))
	}
	if d.Video != nil && d.Video.Duration > models.MaxVideoSeconds {
		return models.NewValidationError(fmt.Sprintf("Video duration must not exceed %d seconds", models.MaxVideoSeconds))
	}
	return nil
}
