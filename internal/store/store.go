// Package store holds the client-side post list and the async actions that
// mutate it. Actions call the API gateway, normalize the response, and fold
// it into shared state; all mutation goes through the folds, never direct
// writes, so conceptual write access is serialized per dispatch.
package store

import (
	"context"
	"sync"

	"twitline/internal/gateway"
	"twitline/internal/models"
)

// Gateway is the subset of the API gateway client the store dispatches
// through. *gateway.Client satisfies it.
type Gateway interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
	Put(ctx context.Context, path string, body any) ([]byte, error)
	Delete(ctx context.Context, path string) ([]byte, error)
	PostForm(ctx context.Context, path string, form *gateway.Form) ([]byte, error)
	PutForm(ctx context.Context, path string, form *gateway.Form) ([]byte, error)
}

// PostStore is the shared post state plus its action dispatchers.
type PostStore struct {
	gw Gateway

	mu    sync.RWMutex
	posts []models.Post // the main feed
	byUser []models.Post // scoped view: one user's posts
	liked  []models.Post // scoped view: posts liked by one user
	subs   []func()
}

// New creates a PostStore dispatching through the given gateway.
func New(gw Gateway) *PostStore {
	return &PostStore{gw: gw}
}

// Subscribe registers fn to run after every state fold. Used by the
// presentation layer to re-render. Subscribers must not block.
func (s *PostStore) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Posts returns a copy of the current feed.
func (s *PostStore) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Post(nil), s.posts...)
}

// UserPosts returns a copy of the scoped user-posts view.
func (s *PostStore) UserPosts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Post(nil), s.byUser...)
}

// LikedPosts returns a copy of the scoped liked-posts view.
func (s *PostStore) LikedPosts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Post(nil), s.liked...)
}

// Get returns the feed post with the given id, if present.
func (s *PostStore) Get(id uint) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// --- folds -----------------------------------------------------------------
//
// Each fold takes the lock, applies one reducer-style state transition, and
// notifies subscribers. Folds initiated by a cancelled context are skipped
// upstream so stale responses never mutate state.

func (s *PostStore) foldReplaceAll(posts []models.Post) {
	s.mu.Lock()
	s.posts = posts
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

func (s *PostStore) foldReplaceUserPosts(posts []models.Post) {
	s.mu.Lock()
	s.byUser = posts
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

func (s *PostStore) foldReplaceLiked(posts []models.Post) {
	s.mu.Lock()
	s.liked = posts
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

// foldMerge replaces the stored copy of the post everywhere it appears, or
// appends it to the feed when it is new. Last response to arrive wins.
func (s *PostStore) foldMerge(post models.Post) {
	s.mu.Lock()
	merged := false
	for i := range s.posts {
		if s.posts[i].ID == post.ID {
			s.posts[i] = post
			merged = true
			break
		}
	}
	if !merged {
		s.posts = append(s.posts, post)
	}
	for i := range s.byUser {
		if s.byUser[i].ID == post.ID {
			s.byUser[i] = post
		}
	}
	for i := range s.liked {
		if s.liked[i].ID == post.ID {
			s.liked[i] = post
		}
	}
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

func (s *PostStore) foldRemove(id uint) {
	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			break
		}
	}
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

func (s *PostStore) foldAppendComment(postID uint, comment models.Comment) {
	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].Comments = append(s.posts[i].Comments, comment)
			break
		}
	}
	subs := s.subs
	s.mu.Unlock()
	notify(subs)
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
