// Package model defines the records exchanged with the travel blog API.
package model

import "time"

// Role is a user's authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool { return s == StatusDraft || s == StatusPublished }

// Tokens is the opaque bearer credential pair of a session (both empty = unauthenticated).
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether no access token is present.
func (t Tokens) Empty() bool { return t.AccessToken == "" }

// User is an account as returned by the API. Credentials are never part of it.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName *string   `json:"firstName,omitempty"`
	LastName  *string   `json:"lastName,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Post is a blog entry. User is populated by list and get endpoints.
type Post struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Excerpt   *string    `json:"excerpt,omitempty"`
	ImageURL  *string    `json:"imageUrl,omitempty"`
	UserID    int64      `json:"userId"`
	Status    PostStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	User      *User      `json:"user,omitempty"`
}

// Comment belongs to a post. Top-level comments carry a flat list of replies (one level deep).
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	PostID    int64     `json:"postId"`
	UserID    int64     `json:"userId"`
	ParentID  *int64    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      *User     `json:"user,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`
}

// ReplyCount returns the number of direct replies.
func (c Comment) ReplyCount() int { return len(c.Replies) }

// PostsList is one page of posts.
type PostsList struct {
	Posts      []Post `json:"posts"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// CommentsList is one page of top-level comments of a post.
type CommentsList struct {
	Comments   []Comment `json:"comments"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// Count is the single-field payload of the count endpoints.
type Count struct {
	Total int `json:"total"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Excerpt  *string    `json:"excerpt,omitempty"`
	ImageURL *string    `json:"imageUrl,omitempty"`
	Status   PostStatus `json:"status,omitempty"`
}

// UpdatePostRequest is the body of PUT /posts/:id. Nil fields are left unchanged.
type UpdatePostRequest struct {
	Title    *string     `json:"title,omitempty"`
	Content  *string     `json:"content,omitempty"`
	Excerpt  *string     `json:"excerpt,omitempty"`
	ImageURL *string     `json:"imageUrl,omitempty"`
	Status   *PostStatus `json:"status,omitempty"`
}

// CreateCommentRequest is the body of POST /comments/post/:postId.
type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// TokenResponse is returned by login and register.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Tokens returns the credential pair carried by the response.
func (r TokenResponse) Tokens() Tokens {
	return Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// LogoutRequest is the body of POST /auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}
