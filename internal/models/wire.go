package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// The backend has drifted across iterations: ids arrive as "id", "_id" or
// "userId", sometimes as strings; users expose "fullName" or "full_name",
// "image" or "avatar"; a post's media is "images" or a single "image"; likes
// are either bare user objects or {id, user} wrappers. This file normalizes
// all of those shapes into the canonical types exactly once, at decode time.

// flexID accepts a JSON number or numeric string.
type flexID uint

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			// Non-numeric foreign id; treat as absent rather than failing
			// the whole decode.
			*f = 0
			return nil
		}
		*f = flexID(n)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

// flexTime accepts RFC 3339 and the backend's zoneless LocalDateTime format.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		*f = flexTime(time.Time{})
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	*f = flexTime(time.Time{})
	return nil
}

type rawUser struct {
	ID       flexID `json:"id"`
	MongoID  flexID `json:"_id"`
	UserID   flexID `json:"userId"`
	FullName string `json:"fullName"`
	FullSnak string `json:"full_name"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Image    string `json:"image"`
	Avatar   string `json:"avatar"`
}

func (r *rawUser) normalize() User {
	name := r.FullName
	if name == "" {
		name = r.FullSnak
	}
	if name == "" {
		name = r.Name
	}
	avatar := r.Avatar
	if avatar == "" {
		avatar = r.Image
	}
	return User{
		ID:       identity(r.ID, r.MongoID, r.UserID),
		FullName: name,
		Email:    r.Email,
		Avatar:   avatar,
	}
}

// rawLike is either a bare user object or a {id, user} wrapper. The bare
// form already decodes via rawUser fields; the wrapped form carries User.
type rawLike struct {
	rawUser
	User *rawUser `json:"user"`
}

func (r *rawLike) normalize() User {
	if r.User != nil {
		return r.User.normalize()
	}
	return r.rawUser.normalize()
}

type rawComment struct {
	ID      flexID   `json:"id"`
	MongoID flexID   `json:"_id"`
	Content string   `json:"content"`
	PostID  flexID   `json:"post_id"`
	TwitID  flexID   `json:"twitId"`
	UserID  flexID   `json:"user_id"`
	User    *rawUser `json:"user"`
	Created flexTime `json:"createdAt"`
	Snake   flexTime `json:"created_at"`
}

func (r *rawComment) normalize() Comment {
	c := Comment{
		ID:        identity(r.ID, r.MongoID),
		Content:   r.Content,
		PostID:    identity(r.PostID, r.TwitID),
		UserID:    uint(r.UserID),
		CreatedAt: firstTime(r.Created, r.Snake),
	}
	if r.User != nil {
		c.User = r.User.normalize()
		if c.UserID == 0 {
			c.UserID = c.User.ID
		}
	}
	return c
}

type rawPost struct {
	ID       flexID       `json:"id"`
	MongoID  flexID       `json:"_id"`
	Content  string       `json:"content"`
	Images   []string     `json:"images"`
	Image    string       `json:"image"`
	Video    string       `json:"video"`
	Duration float64      `json:"video_duration"`
	DurCamel float64      `json:"videoDuration"`
	UserID   flexID       `json:"user_id"`
	AuthorID flexID       `json:"userId"`
	User     *rawUser     `json:"user"`
	Likes    []rawLike    `json:"likes"`
	Comments []rawComment `json:"comments"`
	Created  flexTime     `json:"createdAt"`
	Snake    flexTime     `json:"created_at"`
	Updated  flexTime     `json:"updated_at"`
}

func (r *rawPost) normalize() Post {
	p := Post{
		ID:            identity(r.ID, r.MongoID),
		Content:       r.Content,
		ImageURLs:     r.Images,
		VideoURL:      r.Video,
		VideoDuration: firstFloat(r.Duration, r.DurCamel),
		UserID:        identity(r.UserID, r.AuthorID),
		CreatedAt:     firstTime(r.Created, r.Snake),
		UpdatedAt:     time.Time(r.Updated),
	}
	if len(p.ImageURLs) == 0 && r.Image != "" {
		p.ImageURLs = []string{r.Image}
	}
	if r.User != nil {
		p.User = r.User.normalize()
		if p.UserID == 0 {
			p.UserID = p.User.ID
		}
	}
	for _, l := range r.Likes {
		p.Likes = append(p.Likes, l.normalize())
	}
	for _, c := range r.Comments {
		comment := c.normalize()
		if comment.PostID == 0 {
			comment.PostID = p.ID
		}
		p.Comments = append(p.Comments, comment)
	}
	return p
}

// identity resolves the first non-zero id among the drifted candidates.
func identity(ids ...flexID) uint {
	for _, id := range ids {
		if id != 0 {
			return uint(id)
		}
	}
	return 0
}

func firstTime(ts ...flexTime) time.Time {
	for _, t := range ts {
		if !time.Time(t).IsZero() {
			return time.Time(t)
		}
	}
	return time.Time{}
}

func firstFloat(fs ...float64) float64 {
	for _, f := range fs {
		if f != 0 {
			return f
		}
	}
	return 0
}

// DecodePost normalizes a single raw post payload.
func DecodePost(data []byte) (*Post, error) {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewServerError("Unexpected response from server.", err)
	}
	p := raw.normalize()
	return &p, nil
}

// DecodePosts normalizes a raw post-list payload.
func DecodePosts(data []byte) ([]Post, error) {
	var raws []rawPost
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, NewServerError("Unexpected response from server.", err)
	}
	posts := make([]Post, 0, len(raws))
	for _, r := range raws {
		posts = append(posts, r.normalize())
	}
	return posts, nil
}

// DecodeComment normalizes a single raw comment payload.
func DecodeComment(data []byte) (*Comment, error) {
	var raw rawComment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewServerError("Unexpected response from server.", err)
	}
	c := raw.normalize()
	return &c, nil
}

// DecodeUser normalizes a single raw user payload.
func DecodeUser(data []byte) (*User, error) {
	var raw rawUser
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewServerError("Unexpected response from server.", err)
	}
	u := raw.normalize()
	return &u, nil
}
