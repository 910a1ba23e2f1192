package auth

import (
	"flag"
	"time"
)

type ClientCfg struct {
	// URL of the admin API. Ex: "http://localhost:1337"
	URL string `yaml:"url"`
	// Token is the admin JWT sent as a bearer token.
	Token string `yaml:"token"`
	// Timeout of a single request to the admin API.
	Timeout time.Duration `yaml:"timeout"`
	// CacheTTL is how long the user's permissions are kept before being fetched again.
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

func (c *ClientCfg) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.StringVar(&c.URL, prefix+".url", "", "URL of the admin API.")
	fs.StringVar(&c.Token, prefix+".token", "", "Admin token used to authenticate requests.")
	fs.DurationVar(&c.Timeout, prefix+".timeout", 20*time.Second, "Timeout of requests to the admin API.")
	fs.DurationVar(&c.CacheTTL, prefix+".cache-ttl", CacheExp, "How long the user's permissions are cached.")
}
