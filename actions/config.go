package actions

import (
	"flag"
	"time"
)

const DefaultLocaleDebounce = 200 * time.Millisecond

type Config struct {
	// LocaleDebounce is how long the locale must stay unchanged before it triggers a new check.
	LocaleDebounce time.Duration `yaml:"localeDebounce"`
}

func (c *Config) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.DurationVar(&c.LocaleDebounce, prefix+".locale-debounce", DefaultLocaleDebounce, "Time the locale must be stable before permissions are checked again.")
}
