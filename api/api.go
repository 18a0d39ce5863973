package api

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/postd/auth"
	"github.com/the-lightning-land/postd/gate"
	"github.com/the-lightning-land/postd/node"
	"github.com/the-lightning-land/postd/postdb"
)

const defaultPriceSat = 100

type Config struct {
	DB       *postdb.DB
	Pool     *node.Pool
	Gate     *gate.Gate
	Auth     *auth.Service
	PriceSat int64
	Log      Logger
}

type Api struct {
	db       *postdb.DB
	pool     *node.Pool
	gate     *gate.Gate
	auth     *auth.Service
	priceSat int64
	router   *mux.Router
	log      Logger
}

func New(config *Config) *Api {
	api := &Api{
		db:       config.DB,
		pool:     config.Pool,
		gate:     config.Gate,
		auth:     config.Auth,
		priceSat: config.PriceSat,
		router:   mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	if api.priceSat == 0 {
		api.priceSat = defaultPriceSat
	}

	api.router.Handle("/api/v1/users", api.handleCreateUser()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/login", api.handleLogin()).Methods(http.MethodPost)

	api.router.Handle("/api/v1/connect", api.requireUser(api.handleConnect())).Methods(http.MethodPost)
	api.router.Handle("/api/v1/info", api.handleGetInfo()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/posts", api.handleGetPosts()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/posts", api.requireUser(api.handleCreatePost())).Methods(http.MethodPost)
	api.router.Handle("/api/v1/posts/{id}/invoice", api.handlePostInvoice()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/posts/{id}/upvote", api.handleUpvotePost()).Methods(http.MethodPost)

	api.router.Handle("/api/v1/grants/events", api.handleGrantEvents()).Methods(http.MethodGet)

	return api
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}

// Router exposes the handler for serving through a custom http.Server.
func (a *Api) Router() http.Handler {
	return a.router
}
