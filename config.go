package main

import (
	"time"

	"github.com/jessevdk/go-flags"
)

type profilingConfig struct {
	Listen string `long:"listen" description:"Address of the pprof profiling server"`
}

type config struct {
	ShowVersion bool             `short:"v" long:"version" description:"Display version information and exit"`
	Debug       bool             `long:"debug" description:"Start in debug mode"`
	DataDir     string           `long:"datadir" default:"." description:"Directory where post.db is stored"`
	Listen      string           `long:"listen" default:":9000" description:"Address the api listens on"`
	JwtSecret   string           `long:"jwtsecret" env:"POSTD_JWT_SECRET" description:"Secret used to sign user auth tokens"`
	PriceSat    int64            `long:"price" default:"100" description:"Price of an upvote in satoshis"`
	RPCTimeout  time.Duration    `long:"rpctimeout" default:"30s" description:"Timeout of every remote node call"`
	IdleTimeout time.Duration    `long:"idletimeout" default:"10m" description:"Time after which idle node sessions are evicted"`
	MaxSessions int              `long:"maxsessions" default:"25" description:"Maximum number of live node sessions"`
	Profiling   *profilingConfig `group:"Profiling" namespace:"profiling"`
}

func loadConfig() (*config, error) {
	cfg := &config{}

	parser := flags.NewParser(cfg, flags.Default)

	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
