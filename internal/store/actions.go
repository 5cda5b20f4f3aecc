package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"twitline/internal/gateway"
	"twitline/internal/models"
	"twitline/internal/observability"
)

// CreatePostInput is the payload for CreatePost. Media fields carry
// already-hosted URLs resolved by the media uploader, never raw binary.
type CreatePostInput struct {
	Content       string
	ImageURLs     []string
	VideoURL      string
	VideoDuration float64
}

// UpdatePostInput is the payload for UpdatePost; media replaces wholesale.
type UpdatePostInput struct {
	Content       string
	ImageURLs     []string
	VideoURL      string
	VideoDuration float64
}

// CreatePost submits a new post. On success the returned post is merged into
// the feed and the full list is refetched.
func (s *PostStore) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	defer s.guard("create a post", &err)

	body, callErr := s.submitPost(ctx, "POST", "/api/twits/create", in.Content, in.ImageURLs, in.VideoURL, in.VideoDuration)
	if callErr != nil {
		return nil, authWording(callErr, "Please sign in to create a post.")
	}
	post, err = models.DecodePost(body)
	if err != nil {
		return nil, err
	}
	if stale(ctx) {
		return post, nil
	}
	s.foldMerge(*post)

	// Refresh the feed so server-computed fields (ordering, counts) are
	// consistent. Best-effort: the create already succeeded.
	if _, refreshErr := s.GetAllPosts(ctx); refreshErr != nil {
		observability.LogActionError(ctx, "create_post_refresh", refreshErr, nil)
	}
	return post, nil
}

// GetAllPosts fetches the feed and replaces the post list.
func (s *PostStore) GetAllPosts(ctx context.Context) (posts []models.Post, err error) {
	defer s.guard("load posts", &err)

	body, callErr := s.gw.Get(ctx, "/api/twits/")
	if callErr != nil {
		return nil, callErr
	}
	posts, err = models.DecodePosts(body)
	if err != nil {
		return nil, err
	}
	if !stale(ctx) {
		s.foldReplaceAll(posts)
	}
	return posts, nil
}

// GetUserPosts fetches one user's posts into the scoped view.
func (s *PostStore) GetUserPosts(ctx context.Context, userID uint) (posts []models.Post, err error) {
	defer s.guard("load the user's posts", &err)

	body, callErr := s.gw.Get(ctx, fmt.Sprintf("/api/twits/user/%d", userID))
	if callErr != nil {
		return nil, callErr
	}
	posts, err = models.DecodePosts(body)
	if err != nil {
		return nil, err
	}
	if !stale(ctx) {
		s.foldReplaceUserPosts(posts)
	}
	return posts, nil
}

// FindPostsByLikesContainUser fetches the posts a user has liked into the
// scoped liked view.
func (s *PostStore) FindPostsByLikesContainUser(ctx context.Context, userID uint) (posts []models.Post, err error) {
	defer s.guard("load liked posts", &err)

	body, callErr := s.gw.Get(ctx, fmt.Sprintf("/api/twits/liked/%d", userID))
	if callErr != nil {
		return nil, callErr
	}
	posts, err = models.DecodePosts(body)
	if err != nil {
		return nil, err
	}
	if !stale(ctx) {
		s.foldReplaceLiked(posts)
	}
	return posts, nil
}

// LikePost toggles a like on and merges the returned post into the list.
func (s *PostStore) LikePost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.toggleLike(ctx, postID, "like")
}

// UnlikePost toggles a like off and merges the returned post into the list.
func (s *PostStore) UnlikePost(ctx context.Context, postID uint) (*models.Post, error) {
	return s.toggleLike(ctx, postID, "unlike")
}

func (s *PostStore) toggleLike(ctx context.Context, postID uint, verb string) (post *models.Post, err error) {
	defer s.guard(verb+" the post", &err)

	body, callErr := s.gw.Put(ctx, fmt.Sprintf("/api/twits/%d/%s", postID, verb), nil)
	if callErr != nil {
		return nil, callErr
	}
	post, err = models.DecodePost(body)
	if err != nil {
		return nil, err
	}
	if !stale(ctx) {
		s.foldMerge(*post)
	}
	return post, nil
}

// DeletePost removes a post. A repeat delete of the same id surfaces the
// server's not-found error and leaves the list unchanged.
func (s *PostStore) DeletePost(ctx context.Context, postID uint) (err error) {
	defer s.guard("delete the post", &err)

	_, callErr := s.gw.Delete(ctx, fmt.Sprintf("/api/twits/%d", postID))
	if callErr != nil {
		return authWording(callErr, "Please sign in to delete a post.")
	}
	if !stale(ctx) {
		s.foldRemove(postID)
	}
	return nil
}

// UpdatePost replaces a post's content and media and merges the result.
func (s *PostStore) UpdatePost(ctx context.Context, postID uint, in UpdatePostInput) (post *models.Post, err error) {
	defer s.guard("update the post", &err)

	body, callErr := s.submitPost(ctx, "PUT", fmt.Sprintf("/api/twits/%d", postID), in.Content, in.ImageURLs, in.VideoURL, in.VideoDuration)
	if callErr != nil {
		return nil, authWording(callErr, "Please sign in to update a post.")
	}
	post, err = models.DecodePost(body)
	if err != nil {
		return nil, err
	}
	if !stale(ctx) {
		s.foldMerge(*post)
	}
	return post, nil
}

// AddComment appends a comment to a post and refreshes the feed.
func (s *PostStore) AddComment(ctx context.Context, postID uint, content string) (comment *models.Comment, err error) {
	defer s.guard("add the comment", &err)

	body, callErr := s.gw.Post(ctx, fmt.Sprintf("/api/twits/%d/comment", postID), map[string]string{"content": content})
	if callErr != nil {
		return nil, callErr
	}
	comment, err = models.DecodeComment(body)
	if err != nil {
		return nil, err
	}
	if stale(ctx) {
		return comment, nil
	}
	s.foldAppendComment(postID, *comment)

	if _, refreshErr := s.GetAllPosts(ctx); refreshErr != nil {
		observability.LogActionError(ctx, "add_comment_refresh", refreshErr, nil)
	}
	return comment, nil
}

// submitPost sends a create/update payload: JSON for text-only posts,
// multipart when media references are attached.
func (s *PostStore) submitPost(ctx context.Context, method, path, content string, imageURLs []string, videoURL string, videoDuration float64) ([]byte, error) {
	hasMedia := len(imageURLs) > 0 || videoURL != ""
	if !hasMedia {
		payload := map[string]string{"content": content}
		if method == "POST" {
			return s.gw.Post(ctx, path, payload)
		}
		return s.gw.Put(ctx, path, payload)
	}

	form := gateway.NewForm().AddField("content", content)
	for _, url := range imageURLs {
		form.AddField("images", url)
	}
	if videoURL != "" {
		form.AddField("video", videoURL)
		form.AddField("videoDuration", strconv.FormatFloat(videoDuration, 'f', -1, 64))
	}
	if method == "POST" {
		return s.gw.PostForm(ctx, path, form)
	}
	return s.gw.PutForm(ctx, path, form)
}

// guard converts panics at the action boundary into the uniform error shape;
// nothing escapes to the presentation layer.
func (s *PostStore) guard(action string, err *error) {
	if r := recover(); r != nil {
		*err = models.NewServerError(
			fmt.Sprintf("Failed to %s. Please try again.", action),
			fmt.Errorf("panic in action: %v", r),
		)
	}
}

// authWording swaps in the action-specific sign-in prompt for unauthorized
// failures; other errors pass through untouched.
func authWording(err error, message string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized {
		return models.NewAuthError(message)
	}
	return err
}

// stale reports whether the initiating context was cancelled; stale results
// must not mutate state.
func stale(ctx context.Context) bool {
	return ctx.Err() != nil
}
