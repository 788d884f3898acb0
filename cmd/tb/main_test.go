package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/travelblog/internal/apitest"
	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
)

type harness struct {
	t      *testing.T
	srv    *apitest.Server
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("api:\n  base_url: %q\nsession:\n  dir: %q\nlog:\n  level: error\n", srv.URL(), dir)
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	return &harness{t: t, srv: srv, dir: dir, config: cfg}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out, &errOut)
	err := app.Run(append([]string{"tb", "--config", h.config}, args...))
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, stderr, err := h.run("", args...)
	require.NoError(h.t, err, "stderr: %s", stderr)
	return out
}

func (h *harness) seedUser() model.User {
	return h.srv.AddUser("anna@example.com", "anna", "secret1", model.RoleUser)
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("login", "--email", "anna@example.com", "--password", "secret1")
}

func TestLoginStatusLogout(t *testing.T) {
	h := newHarness(t)
	h.seedUser()

	out := h.mustRun("-o", "json", "session", "status")
	var st sessionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Authenticated)

	out = h.mustRun("login", "--email", "anna@example.com", "--password", "secret1")
	assert.Contains(t, out, "logged in as anna")
	assert.Contains(t, out, "session expires")

	out = h.mustRun("-o", "json", "session", "status")
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Authenticated)
	assert.NotNil(t, st.ExpiresAt)
	assert.False(t, st.Expired)
	assert.True(t, strings.HasPrefix(st.AccessToken, "***"))

	out = h.mustRun("whoami")
	assert.Contains(t, out, "anna@example.com")

	h.mustRun("logout")
	out = h.mustRun("-o", "json", "session", "status")
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Authenticated)

	_, _, err := h.run("", "whoami")
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
}

func TestLogin_PasswordPrompt(t *testing.T) {
	h := newHarness(t)
	h.seedUser()

	out, stderr, err := h.run("secret1\n", "login", "-e", "anna@example.com")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Password:")
	assert.Contains(t, out, "logged in as anna")

	_, _, err = h.run("wrong\n", "login", "-e", "anna@example.com")
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.Error())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("-o", "json", "register", "-e", "nina@example.com", "-u", "nina", "-p", "secret1", "--first-name", "Nina")
	var u model.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.Equal(t, "nina", u.Username)

	out = h.mustRun("whoami")
	assert.Contains(t, out, "Nina")
}

func TestPostsList_AllPages(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser()
	for i := 0; i < 25; i++ {
		h.srv.AddPost(u.ID, fmt.Sprintf("post %d", i), model.StatusPublished)
	}

	out := h.mustRun("-o", "json", "posts", "list", "--pages", "0")
	var posts []model.Post
	require.NoError(t, json.Unmarshal([]byte(out), &posts))
	assert.Len(t, posts, 25)
	assert.Equal(t, 3, h.srv.RequestCount("/posts"))

	out = h.mustRun("posts", "list")
	assert.Contains(t, out, "25 статей, shown 9")
}

func TestPostsList_Interactive(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser()
	for i := 0; i < 25; i++ {
		h.srv.AddPost(u.ID, fmt.Sprintf("post %d", i), model.StatusPublished)
	}

	out, stderr, err := h.run("y\nn\n", "posts", "list", "-i")
	require.NoError(t, err)
	assert.Contains(t, stderr, "9 of 25 shown")
	assert.Contains(t, stderr, "18 of 25 shown")
	assert.Contains(t, stderr, "loading page 2")
	assert.Contains(t, out, "25 статей, shown 18")
	assert.Equal(t, 2, h.srv.RequestCount("/posts"))
}

func TestPostsList_ByUser(t *testing.T) {
	h := newHarness(t)
	a := h.seedUser()
	b := h.srv.AddUser("b@example.com", "boris", "secret1", model.RoleUser)
	h.srv.AddPost(a.ID, "mine", model.StatusPublished)
	h.srv.AddPost(b.ID, "theirs", model.StatusPublished)

	out := h.mustRun("posts", "list", "--user", fmt.Sprint(b.ID))
	assert.Contains(t, out, "theirs")
	assert.NotContains(t, out, "mine")
	reqs := h.srv.Requests()
	assert.Equal(t, "page=1&pageSize=12", reqs[len(reqs)-1].Query)
}

func TestPostsGet_WithComments(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser()
	p := h.srv.AddPost(u.ID, "Baikal", model.StatusPublished)
	c := h.srv.AddComment(p.ID, u.ID, 0, "great")
	h.srv.AddComment(p.ID, u.ID, c.ID, "thanks")

	out := h.mustRun("-o", "json", "posts", "get", fmt.Sprint(p.ID))
	var d postDetail
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "Baikal", d.Post.Title)
	assert.Equal(t, 1, d.CommentsTotal)
	require.Len(t, d.Comments, 1)
	assert.Equal(t, 1, d.Comments[0].ReplyCount())

	out = h.mustRun("posts", "get", fmt.Sprint(p.ID))
	assert.Contains(t, out, "1 комментарий")
	assert.Contains(t, out, "↳")

	_, _, err := h.run("", "posts", "get", "abc")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, _, err = h.run("", "posts", "get", "999")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostsCreateUpdateDelete(t *testing.T) {
	h := newHarness(t)
	h.seedUser()
	other := h.srv.AddUser("b@example.com", "boris", "secret1", model.RoleUser)
	foreign := h.srv.AddPost(other.ID, "foreign", model.StatusPublished)

	_, _, err := h.run("", "posts", "create", "--title", "t", "--content", "c")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	h.login()
	out, _, err := h.run("Long story\nabout Altai\n", "-o", "json", "posts", "create", "--title", "Altai", "--content-file", "-")
	require.NoError(t, err)
	var p model.Post
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "Long story\nabout Altai", p.Content)

	out = h.mustRun("posts", "update", "--status", "draft", fmt.Sprint(p.ID))
	assert.Contains(t, out, "draft")

	_, _, err = h.run("", "posts", "update", fmt.Sprint(p.ID))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	before := h.srv.RequestCount(fmt.Sprintf("/posts/%d", foreign.ID))
	_, _, err = h.run("", "posts", "delete", fmt.Sprint(foreign.ID))
	assert.ErrorIs(t, err, errs.ErrForbidden)
	for _, r := range h.srv.Requests() {
		assert.False(t, r.Method == http.MethodDelete, "no DELETE may be sent for a foreign post")
	}
	assert.Equal(t, before+1, h.srv.RequestCount(fmt.Sprintf("/posts/%d", foreign.ID)))

	out = h.mustRun("posts", "delete", fmt.Sprint(p.ID))
	assert.Contains(t, out, "deleted")
	_, ok := h.srv.Post(p.ID)
	assert.False(t, ok)
}

func TestComments(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser()
	p := h.srv.AddPost(u.ID, "p", model.StatusPublished)
	for i := 0; i < 12; i++ {
		h.srv.AddComment(p.ID, u.ID, 0, fmt.Sprintf("c%d", i))
	}

	_, _, err := h.run("", "comments", "add", "-m", "hello", fmt.Sprint(p.ID))
	require.True(t, errors.Is(err, errs.ErrNotAuthenticated), "got %v", err)

	h.login()
	out := h.mustRun("comments", "add", "-m", "  hello  ", fmt.Sprint(p.ID))
	assert.Contains(t, out, "hello")

	out = h.mustRun("-o", "json", "comments", "list", "--pages", "0", fmt.Sprint(p.ID))
	var cs []model.Comment
	require.NoError(t, json.Unmarshal([]byte(out), &cs))
	assert.Len(t, cs, 13)
	assert.Equal(t, "hello", cs[0].Content)

	_, _, err = h.run("", "comments", "add", "-m", "   ", fmt.Sprint(p.ID))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser()
	h.srv.AddUser("b@example.com", "boris", "secret1", model.RoleUser)
	p := h.srv.AddPost(u.ID, "p", model.StatusPublished)
	h.srv.AddComment(p.ID, u.ID, 0, "c")

	out := h.mustRun("stats")
	assert.Contains(t, out, "Статья")
	assert.Contains(t, out, "Путешественника")
	assert.Contains(t, out, "Комментарий")

	h.srv.FailNext(http.StatusOK, `{"success":true,"data":{"posts":[],"total":0,"page":1,"pageSize":9,"totalPages":0}}`)
	h.srv.FailNext(http.StatusInternalServerError, "")
	out = h.mustRun("-o", "json", "stats")
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.EqualValues(t, 0, st["users"])
	assert.EqualValues(t, 1, st["comments"])
}

func TestVersionAndBadOutput(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("version")
	assert.Contains(t, out, "tb dev")

	_, _, err := h.run("", "-o", "xml", "stats")
	assert.Error(t, err)
}

func TestSessionWatch_RequiresFileBackend(t *testing.T) {
	h := newHarness(t)
	cfg := filepath.Join(h.dir, "pg.yaml")
	content := fmt.Sprintf("api:\n  base_url: %q\nsession:\n  backend: postgres\n  dsn: \"postgres://u:p@127.0.0.1:1/none\"\n", h.srv.URL())
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	h.config = cfg

	_, _, err := h.run("", "session", "watch")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestReport_HintsWhenServerUnreachable(t *testing.T) {
	h := newHarness(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/api"
	dead.Close()

	_, _, err := h.run("", "--base-url", deadURL, "posts", "list")
	require.Error(t, err)
	var buf bytes.Buffer
	report(&buf, err)
	assert.Contains(t, buf.String(), "error: ")
	assert.Contains(t, buf.String(), "hint: the API server did not answer")

	_, _, err = h.run("", "posts", "get", "999")
	require.ErrorIs(t, err, errs.ErrNotFound)
	buf.Reset()
	report(&buf, err)
	assert.Equal(t, "error: post not found\n", buf.String())
}
