// Package apitest runs an in-memory travel blog API over httptest for client tests.
// Routes, status codes and envelope shapes follow the real backend.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/travelblog/internal/crypto"
	"github.com/and161185/travelblog/internal/model"
)

var signKey = []byte("apitest-signing-key")

// Recorded is one request seen by the server.
type Recorded struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	RequestID     string
	Body          string
}

type canned struct {
	status int
	body   string
}

// Server is a fake blog API. All exported methods are safe for concurrent use.
type Server struct {
	t   testing.TB
	srv *httptest.Server
	api *mux.Router
	log *zap.Logger

	mu        sync.Mutex
	users     []model.User
	passwords map[int64]crypto.PasswordHash
	posts     []model.Post
	comments  []model.Comment
	access    map[string]int64
	refresh   map[string]int64
	requests  []Recorded
	failNext  []canned
	nextID    int64
	now       time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger replaces the default zaptest logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// New starts a server that is closed when t ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		t:         t,
		log:       zaptest.NewLogger(t),
		passwords: map[int64]crypto.PasswordHash{},
		access:    map[string]int64{},
		refresh:   map[string]int64{},
		now:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, o := range opts {
		o(s)
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the API base URL, e.g. http://127.0.0.1:PORT/api.
func (s *Server) URL() string { return s.srv.URL + "/api" }

// Requests returns a copy of the requests seen so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestCount returns how many requests hit path (query excluded).
func (s *Server) RequestCount(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// FailNext makes the next request answer with status and a raw body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, canned{status: status, body: body})
}

// hashParams keep Argon2id cheap enough for tests.
var hashParams = crypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// AddUser registers a user and returns it.
func (s *Server) AddUser(email, username, password string, role model.Role) model.User {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.addUserLocked(email, username, password, role)
	if err != nil {
		s.t.Fatalf("apitest: add user %s: %v", email, err)
	}
	return u
}

func (s *Server) addUserLocked(email, username, password string, role model.Role) (model.User, error) {
	h, err := crypto.NewPasswordHash(password, hashParams)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID: s.id(), Email: email, Username: username, Role: role,
		CreatedAt: s.tick(), UpdatedAt: s.now,
	}
	s.users = append(s.users, u)
	s.passwords[u.ID] = h
	return u, nil
}

// PasswordHash returns the stored hash of a user's password.
func (s *Server) PasswordHash(userID int64) (crypto.PasswordHash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, found := s.passwords[userID]
	return h, found
}

// AddPost stores a post owned by userID.
func (s *Server) AddPost(userID int64, title string, status model.PostStatus) model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Post{
		ID: s.id(), Title: title, Content: title + " content", UserID: userID, Status: status,
		CreatedAt: s.tick(), UpdatedAt: s.now,
	}
	s.posts = append(s.posts, p)
	return p
}

// AddComment stores a comment; parentID 0 means top level.
func (s *Server) AddComment(postID, userID, parentID int64, content string) model.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCommentLocked(postID, userID, parentID, content)
}

func (s *Server) addCommentLocked(postID, userID, parentID int64, content string) model.Comment {
	c := model.Comment{ID: s.id(), Content: content, PostID: postID, UserID: userID, CreatedAt: s.tick(), UpdatedAt: s.now}
	if parentID != 0 {
		pid := parentID
		c.ParentID = &pid
	}
	s.comments = append(s.comments, c)
	return c
}

// IssueToken returns a valid access token for userID.
func (s *Server) IssueToken(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _ := s.issueLocked(userID)
	return t.AccessToken
}

// Post returns the stored post with id.
func (s *Server) Post(id int64) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return model.Post{}, false
	}
	return s.posts[i], true
}

// RefreshTokenValid reports whether the refresh token is still active.
func (s *Server) RefreshTokenValid(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[tok]
	return ok
}

func (s *Server) id() int64 { s.nextID++; return s.nextID }

func (s *Server) tick() time.Time { s.now = s.now.Add(time.Minute); return s.now }

func (s *Server) issueLocked(userID int64) (model.Tokens, error) {
	seq := s.id()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        strconv.FormatInt(seq, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	ref := fmt.Sprintf("refresh-%d-%d", userID, seq)
	s.access[access] = userID
	s.refresh[ref] = userID
	return model.Tokens{AccessToken: access, RefreshToken: ref}, nil
}

// Handle adds a route under /api. Call it before the first request.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.api.HandleFunc(path, h).Methods(method)
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(recoverer(s.log), logging(s.log), s.record)
	api := r.PathPrefix("/api").Subrouter()
	s.api = api

	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.auth(s.logout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.auth(s.me)).Methods(http.MethodGet)

	api.HandleFunc("/posts", s.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts", s.auth(s.createPost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/user/{userId}", s.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", s.getPost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", s.auth(s.updatePost)).Methods(http.MethodPut)
	api.HandleFunc("/posts/{id}", s.auth(s.deletePost)).Methods(http.MethodDelete)

	api.HandleFunc("/comments/count", s.countComments).Methods(http.MethodGet)
	api.HandleFunc("/comments/post/{postId}", s.listComments).Methods(http.MethodGet)
	api.HandleFunc("/comments/post/{postId}", s.auth(s.createComment)).Methods(http.MethodPost)

	api.HandleFunc("/users/count", s.countUsers).Methods(http.MethodGet)
	return r
}

// ---- middleware ----

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, "/api"),
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          string(body),
		})
		var c *canned
		if len(s.failNext) > 0 {
			c = &s.failNext[0]
			s.failNext = s.failNext[1:]
		}
		s.mu.Unlock()

		if c != nil {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte(c.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if hdr == "" {
			fail(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		parts := strings.Split(hdr, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			fail(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		s.mu.Lock()
		uid, ok := s.access[parts[1]]
		s.mu.Unlock()
		if !ok {
			fail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h(w, r.WithContext(withUserID(r.Context(), uid)))
	}
}

// currentUser returns the ID put in the context by auth. Missing means a routing bug.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, ok := userIDFromCtx(r.Context())
	if !ok {
		fail(w, http.StatusUnauthorized, "User not authenticated")
	}
	return uid, ok
}

// ---- auth ----

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Username == "" || len(req.Password) < 6 {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == req.Email || u.Username == req.Username {
			fail(w, http.StatusConflict, "user with this email or username already exists")
			return
		}
	}
	u, err := s.addUserLocked(req.Email, req.Username, req.Password, model.RoleUser)
	if err != nil {
		fail(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	u.FirstName, u.LastName = req.FirstName, req.LastName
	s.users[len(s.users)-1] = u
	t, err := s.issueLocked(u.ID)
	if err != nil {
		fail(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	ok(w, http.StatusCreated, model.TokenResponse{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, User: u})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == req.Email && s.passwords[u.ID].Verify(req.Password) {
			t, err := s.issueLocked(u.ID)
			if err != nil {
				fail(w, http.StatusInternalServerError, "failed to generate tokens")
				return
			}
			ok(w, http.StatusOK, model.TokenResponse{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, User: u})
			return
		}
	}
	fail(w, http.StatusUnauthorized, "invalid email or password")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req model.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	s.mu.Lock()
	delete(s.refresh, req.RefreshToken)
	s.mu.Unlock()
	message(w, "Logged out successfully")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID, authed := currentUser(w, r)
	if !authed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, found := s.userLocked(userID); found {
		ok(w, http.StatusOK, u)
		return
	}
	fail(w, http.StatusNotFound, "user not found")
}

// ---- posts ----

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r, 10)
	var byUser int64
	if v, has := mux.Vars(r)["userId"]; has {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			fail(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		byUser = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Post
	for _, p := range s.posts {
		if byUser != 0 && p.UserID != byUser {
			continue
		}
		if byUser == 0 && p.Status != model.StatusPublished {
			continue
		}
		all = append(all, s.withAuthorLocked(p))
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	ok(w, http.StatusOK, model.PostsList{
		Posts: window(all, page, size), Total: len(all), Page: page, PageSize: size,
		TotalPages: totalPages(len(all), size),
	})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, good := pathID(w, r, "id", "Invalid post ID")
	if !good {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		fail(w, http.StatusNotFound, "post not found")
		return
	}
	ok(w, http.StatusOK, s.withAuthorLocked(s.posts[i]))
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	userID, authed := currentUser(w, r)
	if !authed {
		return
	}
	var req model.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" || req.Content == "" {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	if req.Status == "" {
		req.Status = model.StatusPublished
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Post{
		ID: s.id(), Title: req.Title, Content: req.Content, Excerpt: req.Excerpt, ImageURL: req.ImageURL,
		UserID: userID, Status: req.Status, CreatedAt: s.tick(), UpdatedAt: s.now,
	}
	s.posts = append(s.posts, p)
	ok(w, http.StatusCreated, s.withAuthorLocked(p))
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	userID, authed := currentUser(w, r)
	if !authed {
		return
	}
	id, good := pathID(w, r, "id", "Invalid post ID")
	if !good {
		return
	}
	var req model.UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		fail(w, http.StatusNotFound, "post not found")
		return
	}
	if !s.canModifyLocked(userID, s.posts[i]) {
		fail(w, http.StatusForbidden, "permission denied")
		return
	}
	p := &s.posts[i]
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Content != nil {
		p.Content = *req.Content
	}
	if req.Excerpt != nil {
		p.Excerpt = req.Excerpt
	}
	if req.ImageURL != nil {
		p.ImageURL = req.ImageURL
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	p.UpdatedAt = s.tick()
	ok(w, http.StatusOK, s.withAuthorLocked(*p))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	userID, authed := currentUser(w, r)
	if !authed {
		return
	}
	id, good := pathID(w, r, "id", "Invalid post ID")
	if !good {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		fail(w, http.StatusNotFound, "post not found")
		return
	}
	if !s.canModifyLocked(userID, s.posts[i]) {
		fail(w, http.StatusForbidden, "permission denied")
		return
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	message(w, "Post deleted successfully")
}

// ---- comments ----

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	postID, good := pathID(w, r, "postId", "Invalid post ID")
	if !good {
		return
	}
	page, size := pagination(r, 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	var top []model.Comment
	for _, c := range s.comments {
		if c.PostID != postID || c.ParentID != nil {
			continue
		}
		c.User = s.userPtrLocked(c.UserID)
		for _, rep := range s.comments {
			if rep.ParentID != nil && *rep.ParentID == c.ID {
				rep.User = s.userPtrLocked(rep.UserID)
				c.Replies = append(c.Replies, rep)
			}
		}
		top = append(top, c)
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].CreatedAt.After(top[j].CreatedAt) })
	ok(w, http.StatusOK, model.CommentsList{
		Comments: window(top, page, size), Total: len(top), Page: page, PageSize: size,
		TotalPages: totalPages(len(top), size),
	})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	userID, authed := currentUser(w, r)
	if !authed {
		return
	}
	postID, good := pathID(w, r, "postId", "Invalid post ID")
	if !good {
		return
	}
	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		fail(w, http.StatusBadRequest, "Invalid request data")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postIndex(postID) < 0 {
		fail(w, http.StatusNotFound, "post not found")
		return
	}
	var parent int64
	if req.ParentID != nil {
		parent = *req.ParentID
	}
	c := s.addCommentLocked(postID, userID, parent, req.Content)
	c.User = s.userPtrLocked(userID)
	ok(w, http.StatusCreated, c)
}

func (s *Server) countComments(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := len(s.comments)
	s.mu.Unlock()
	ok(w, http.StatusOK, model.Count{Total: n})
}

func (s *Server) countUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := len(s.users)
	s.mu.Unlock()
	ok(w, http.StatusOK, model.Count{Total: n})
}

// ---- helpers ----

func (s *Server) postIndex(id int64) int {
	for i, p := range s.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) userLocked(id int64) (model.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Server) userPtrLocked(id int64) *model.User {
	if u, found := s.userLocked(id); found {
		return &u
	}
	return nil
}

func (s *Server) withAuthorLocked(p model.Post) model.Post {
	p.User = s.userPtrLocked(p.UserID)
	return p
}

func (s *Server) canModifyLocked(userID int64, p model.Post) bool {
	u, found := s.userLocked(userID)
	return found && (u.IsAdmin() || p.UserID == userID)
}

func pathID(w http.ResponseWriter, r *http.Request, key, msg string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil || id <= 0 {
		fail(w, http.StatusBadRequest, msg)
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request, defSize int) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || size < 1 {
		size = defSize
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func window[T any](all []T, page, size int) []T {
	from := (page - 1) * size
	if from >= len(all) {
		return []T{}
	}
	to := from + size
	if to > len(all) {
		to = len(all)
	}
	return all[from:to]
}

func totalPages(total, size int) int { return (total + size - 1) / size }

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

func message(w http.ResponseWriter, msg string) {
	write(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func fail(w http.ResponseWriter, status int, msg string) {
	write(w, status, envelope{Success: false, Error: msg})
}
