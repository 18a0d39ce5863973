package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/the-lightning-land/postd/auth"
	"github.com/the-lightning-land/postd/postdb"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Blog     string `json:"blog"`
	Password string `json:"password"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type userResponse struct {
	Id    uint64 `json:"id"`
	Name  string `json:"name"`
	Blog  string `json:"blog"`
	Token string `json:"token"`
}

func (a *Api) handleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createUserRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Name == "" || req.Blog == "" || req.Password == "" {
			a.jsonError(w, "All inputs are required", http.StatusBadRequest)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			a.jsonError(w, "Could not create user", http.StatusInternalServerError)
			return
		}

		user := &postdb.User{
			Name:         req.Name,
			Blog:         req.Blog,
			PasswordHash: hash,
		}

		err = a.db.CreateUser(user)
		if errors.Is(err, postdb.ErrUserExists) {
			a.jsonError(w, "User already exists. Please login.", http.StatusConflict)
			return
		} else if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		token, err := a.auth.Issue(user.ID, user.Name)
		if err != nil {
			a.jsonError(w, "Could not issue auth token", http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, &userResponse{
			Id:    user.ID,
			Name:  user.Name,
			Blog:  user.Blog,
			Token: token,
		}, http.StatusCreated)
	}
}

func (a *Api) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := loginRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		user, err := a.db.GetUserByName(req.Name)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if user == nil || auth.CheckPassword(req.Password, user.PasswordHash) != nil {
			a.jsonError(w, "Invalid name or password", http.StatusUnauthorized)
			return
		}

		token, err := a.auth.Issue(user.ID, user.Name)
		if err != nil {
			a.jsonError(w, "Could not issue auth token", http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, &userResponse{
			Id:    user.ID,
			Name:  user.Name,
			Blog:  user.Blog,
			Token: token,
		}, http.StatusOK)
	}
}
