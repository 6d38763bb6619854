package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// addPostForm is the body of POST /add. Both fields must be present but
// may be empty.
type addPostForm struct {
	Title string
	Text  string
}

type loginForm struct {
	Username string
	Password string
}

type searchParams struct {
	Query string
}

func parseAddPostForm(r *http.Request) (addPostForm, error) {
	if err := r.ParseForm(); err != nil {
		return addPostForm{}, err
	}
	title, err := requiredField(r, "title")
	if err != nil {
		return addPostForm{}, err
	}
	text, err := requiredField(r, "text")
	if err != nil {
		return addPostForm{}, err
	}
	return addPostForm{Title: title, Text: text}, nil
}

func parseLoginForm(r *http.Request) (loginForm, error) {
	if err := r.ParseForm(); err != nil {
		return loginForm{}, err
	}
	username, err := requiredField(r, "username")
	if err != nil {
		return loginForm{}, err
	}
	password, err := requiredField(r, "password")
	if err != nil {
		return loginForm{}, err
	}
	return loginForm{Username: username, Password: password}, nil
}

func parseSearchParams(r *http.Request) searchParams {
	return searchParams{Query: r.URL.Query().Get("query")}
}

// parsePostID reads the {postID} route parameter. The route pattern only
// admits digits, so an error here means the id overflowed.
func parsePostID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id: %w", err)
	}
	return id, nil
}

func requiredField(r *http.Request, name string) (string, error) {
	values, ok := r.PostForm[name]
	if !ok || len(values) == 0 {
		return "", fmt.Errorf("missing form field %q", name)
	}
	return values[0], nil
}
