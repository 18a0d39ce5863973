package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/the-lightning-land/postd/postdb"
)

type createPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type postResponse struct {
	Id      uint64 `json:"id"`
	UserId  uint64 `json:"userId"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Upvotes int    `json:"upvotes"`
}

type postInvoiceResponse struct {
	Payreq string `json:"payreq"`
	Hash   string `json:"hash"`
	Amount int64  `json:"amount"`
}

type upvotePostRequest struct {
	Hash string `json:"hash"`
}

func upvoteActionID(postID uint64) string {
	return fmt.Sprintf("post-%d-upvote", postID)
}

func toPostResponse(post *postdb.Post) *postResponse {
	return &postResponse{
		Id:      post.ID,
		UserId:  post.UserID,
		Title:   post.Title,
		Content: post.Content,
		Upvotes: post.Upvotes,
	}
}

func (a *Api) handleGetPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := a.db.GetPosts()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		res := []*postResponse{}
		for _, post := range posts {
			res = append(res, toPostResponse(post))
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}

func (a *Api) handleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createPostRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Title == "" {
			a.jsonError(w, "A title is required", http.StatusBadRequest)
			return
		}

		user := userFromContext(r.Context())

		post := &postdb.Post{
			UserID:  user.UserID,
			Title:   req.Title,
			Content: req.Content,
		}

		err = a.db.CreatePost(post)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, toPostResponse(post), http.StatusCreated)
	}
}

// handlePostInvoice prices an upvote on the node of the user who wrote the
// post, so the payment always lands with the post's owner.
func (a *Api) handlePostInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, ok := a.postFromRequest(w, r)
		if !ok {
			return
		}

		owner, err := a.db.GetUser(post.UserID)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if owner == nil || owner.NodeToken == "" {
			a.jsonError(w, "No node is connected for this post", http.StatusServiceUnavailable)
			return
		}

		invoice, err := a.gate.PriceAction(r.Context(), upvoteActionID(post.ID), post.ID, owner.NodeToken, a.priceSat)
		if err != nil {
			a.coreError(w, err)
			return
		}

		a.jsonResponse(w, &postInvoiceResponse{
			Payreq: invoice.PaymentRequest,
			Hash:   base64.StdEncoding.EncodeToString(invoice.RHash),
			Amount: invoice.AmountSat,
		}, http.StatusOK)
	}
}

func (a *Api) handleUpvotePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, ok := a.postFromRequest(w, r)
		if !ok {
			return
		}

		req := upvotePostRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		hash, err := base64.StdEncoding.DecodeString(req.Hash)
		if err != nil {
			a.jsonError(w, "hash must be base64 encoded", http.StatusBadRequest)
			return
		}

		_, err = a.gate.Redeem(r.Context(), upvoteActionID(post.ID), hash)
		if err != nil {
			a.coreError(w, err)
			return
		}

		updated, err := a.db.GetPost(post.ID)
		if err != nil || updated == nil {
			a.jsonError(w, "Could not load post", http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, toPostResponse(updated), http.StatusOK)
	}
}

func (a *Api) postFromRequest(w http.ResponseWriter, r *http.Request) (*postdb.Post, bool) {
	vars := mux.Vars(r)

	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		a.jsonError(w, "Invalid post id", http.StatusBadRequest)
		return nil, false
	}

	post, err := a.db.GetPost(id)
	if err != nil {
		a.jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}

	if post == nil {
		a.jsonError(w, "Post not found", http.StatusNotFound)
		return nil, false
	}

	return post, true
}
