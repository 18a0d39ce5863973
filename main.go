package main

import (
	"context"
	"crypto/rand"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/postd/api"
	"github.com/the-lightning-land/postd/auth"
	"github.com/the-lightning-land/postd/gate"
	"github.com/the-lightning-land/postd/node"
	"github.com/the-lightning-land/postd/postdb"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// upvoteApplier applies the gated upvote effect to the posts store.
type upvoteApplier struct {
	db *postdb.DB
}

func (a *upvoteApplier) Apply(ctx context.Context, action *gate.Action) error {
	return a.db.UpvotePost(action.PostID)
}

// postdMain is the true entry point for postd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func postdMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling != nil && cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// post.db persistently stores node credentials, users, posts and actions
	db, err := postdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open post.db: %v", err)
	}

	log.Infof("Opened post.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close post.db: %v", err)
		} else {
			log.Info("Closed post.db.")
		}
	}()

	// The session pool, holding one authenticated handle per registered node
	pool := node.NewPool(&node.PoolConfig{
		Store:       db,
		RPCTimeout:  cfg.RPCTimeout,
		IdleTimeout: cfg.IdleTimeout,
		MaxSessions: cfg.MaxSessions,
		Logger:      log.New().WithField("system", "pool"),
	})

	pool.Start()
	defer pool.Stop()

	log.Info("Created node session pool.")

	// The gate holding upvotes back until their invoice settles
	g := gate.New(&gate.Config{
		Pool:    pool,
		Store:   db,
		Applier: &upvoteApplier{db: db},
		Logger:  log.New().WithField("system", "gate"),
	})

	log.Info("Created invoice gate.")

	jwtSecret := []byte(cfg.JwtSecret)
	if len(jwtSecret) == 0 {
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			return errors.Errorf("Could not generate jwt secret: %v", err)
		}

		log.Warn("No jwt secret configured. Generated a random one; user sessions won't survive a restart.")
	}

	authService := auth.New(&auth.Config{
		Secret: jwtSecret,
	})

	a := api.New(&api.Config{
		DB:       db,
		Pool:     pool,
		Gate:     g,
		Auth:     authService,
		PriceSat: cfg.PriceSat,
		Log:      log.New().WithField("system", "api"),
	})

	log.Info("Created API.")

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Errorf("Unable to listen on %v: %v", cfg.Listen, err)
	}

	serveErrors := make(chan error, 1)

	go func() {
		log.Infof("Serving api on %v", cfg.Listen)
		serveErrors <- a.Serve(lis)
	}()

	// Handle interrupt signals correctly
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	select {
	case sig := <-signals:
		log.Info(sig)
		log.Info("Received an interrupt, stopping postd...")

		err := lis.Close()
		if err != nil {
			log.Errorf("Could not close listener: %v", err)
		}

		return nil
	case err := <-serveErrors:
		return errors.Errorf("Failed serving api: %v", err)
	}
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := postdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running postd.")
		}
		os.Exit(1)
	}
}
