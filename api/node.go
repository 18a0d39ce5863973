package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
)

type connectRequest struct {
	Host     string `json:"host"`
	Cert     string `json:"cert"`
	Macaroon string `json:"macaroon"`
}

type connectResponse struct {
	Token  string `json:"token"`
	Pubkey string `json:"pubkey"`
}

type getInfoRequest struct {
	Token string `json:"token"`
}

type getInfoResponse struct {
	Alias   string `json:"alias"`
	Balance int64  `json:"balance"`
	Pubkey  string `json:"pubkey"`
}

// handleConnect registers a lightning node for the authenticated user. The
// cert is the base64 body of the node's TLS certificate, the macaroon is
// hex encoded.
func (a *Api) handleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := connectRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Host == "" || req.Cert == "" || req.Macaroon == "" {
			a.jsonError(w, "host, cert and macaroon are required", http.StatusBadRequest)
			return
		}

		macaroon, err := hex.DecodeString(req.Macaroon)
		if err != nil {
			a.jsonError(w, "macaroon must be hex encoded", http.StatusBadRequest)
			return
		}

		token, pubkey, err := a.pool.Connect(r.Context(), req.Host, []byte(req.Cert), macaroon)
		if err != nil {
			a.coreError(w, err)
			return
		}

		user := userFromContext(r.Context())

		err = a.db.SetUserNodeToken(user.UserID, token)
		if err != nil {
			a.log.Errorf("Could not link node to user %v: %v", user.UserID, err)
			a.jsonError(w, "Could not link node to user", http.StatusInternalServerError)
			return
		}

		a.jsonResponse(w, &connectResponse{
			Token:  token,
			Pubkey: pubkey,
		}, http.StatusCreated)
	}
}

func (a *Api) handleGetInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := getInfoRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if req.Token == "" {
			a.jsonError(w, "Your node is not connected", http.StatusBadRequest)
			return
		}

		status, err := a.pool.Info(r.Context(), req.Token)
		if err != nil {
			a.coreError(w, err)
			return
		}

		a.jsonResponse(w, &getInfoResponse{
			Alias:   status.Alias,
			Balance: status.BalanceSat,
			Pubkey:  status.Pubkey,
		}, http.StatusOK)
	}
}
