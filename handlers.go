package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

const msgPostNotFound = "Post not found"

// statusResponse is the JSON body returned by the delete route and its guard.
type statusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// pageData is what every page template receives.
type pageData struct {
	Title    string
	LoggedIn bool
	Flashes  []string
	Posts    []Post
	Query    string
	Error    string
}

// newPageData pops the session's flashes, so the session is saved here
// before the page body is written.
func (b *Blog) newPageData(w http.ResponseWriter, r *http.Request, title string) pageData {
	s := sessionFrom(r)
	data := pageData{
		Title:    title,
		LoggedIn: s.LoggedIn(),
		Flashes:  s.Flashes(),
	}
	if len(data.Flashes) > 0 {
		b.saveSession(w, r)
	}
	return data
}

func (b *Blog) saveSession(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Save(w, r); err != nil {
		b.logger.Error("saving session", zap.Error(err))
	}
}

func (b *Blog) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := getPosts(r.Context(), b.db)
	if err != nil {
		b.serverError(w, "listing posts", err)
		return
	}

	data := b.newPageData(w, r, "Home")
	data.Posts = posts
	b.render(w, "index.html", data)
}

func (b *Blog) Add(w http.ResponseWriter, r *http.Request) {
	form, err := parseAddPostForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := sessionFrom(r)
	if _, err := createPost(r.Context(), b.db, form.Title, form.Text); err != nil {
		b.logger.Error("adding post", zap.Error(err))
		s.Flash("Error: " + err.Error())
	} else {
		s.Flash("New entry was successfully posted")
	}

	b.saveSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) LoginForm(w http.ResponseWriter, r *http.Request) {
	b.render(w, "login.html", b.newPageData(w, r, "Login"))
}

// Login checks the submitted credentials. Bad credentials re-render the
// form with an inline error and never touch the session.
func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	form, err := parseLoginForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var loginErr string
	user, err := getUserByUsername(r.Context(), b.db, form.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		loginErr = "Invalid username"
	case err != nil:
		b.serverError(w, "looking up user", err)
		return
	case !checkPassword(user.PasswordHash, form.Password):
		loginErr = "Invalid password"
	}

	if loginErr != "" {
		b.logger.Info("login failed", zap.String("username", form.Username), zap.String("reason", loginErr))
		data := b.newPageData(w, r, "Login")
		data.Error = loginErr
		b.render(w, "login.html", data)
		return
	}

	s := sessionFrom(r)
	s.LogIn()
	s.Flash("You were logged in")
	b.saveSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	s.LogOut()
	s.Flash("You were logged out")
	b.saveSession(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Delete removes a post and answers with a status object. Store failures
// are reported in the body with a 200, like failed adds are flashed.
func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeJSON(w, http.StatusNotFound, statusResponse{Status: 0, Message: msgPostNotFound})
		return
	}

	err = deletePost(r.Context(), b.db, id)
	switch {
	case errors.Is(err, errPostNotFound):
		writeJSON(w, http.StatusNotFound, statusResponse{Status: 0, Message: msgPostNotFound})
	case err != nil:
		b.logger.Error("deleting post", zap.Int64("id", id), zap.Error(err))
		writeJSON(w, http.StatusOK, statusResponse{Status: 0, Message: err.Error()})
	default:
		sessionFrom(r).Flash("The entry was deleted.")
		b.saveSession(w, r)
		writeJSON(w, http.StatusOK, statusResponse{Status: 1, Message: "Post Deleted"})
	}
}

func (b *Blog) Search(w http.ResponseWriter, r *http.Request) {
	params := parseSearchParams(r)

	posts, err := searchPosts(r.Context(), b.db, params.Query)
	if err != nil {
		b.serverError(w, "searching posts", err)
		return
	}

	data := b.newPageData(w, r, "Search")
	data.Posts = posts
	data.Query = params.Query
	b.render(w, "search.html", data)
}

// Health reports whether the database is reachable.
func (b *Blog) Health(w http.ResponseWriter, r *http.Request) {
	if err := b.db.PingContext(r.Context()); err != nil {
		b.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (b *Blog) serverError(w http.ResponseWriter, msg string, err error) {
	b.logger.Error(msg, zap.Error(err))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
