package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/grafana/rbac-actions/actions"
	"github.com/grafana/rbac-actions/auth"
	"github.com/grafana/rbac-actions/types"
)

type config struct {
	Client   auth.ClientCfg `yaml:"client"`
	Actions  actions.Config `yaml:"actions"`
	LogLevel string         `yaml:"logLevel"`
}

func (c *config) RegisterFlags(fs *flag.FlagSet) {
	c.Client.RegisterFlags("client", fs)
	c.Actions.RegisterFlags("actions", fs)
	fs.StringVar(&c.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

// load reads the YAML file at path into c. Flags set on the command line win over the file.
func (c *config) load(path string, flags *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	changed := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(lvl string) (log.Logger, error) {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "info", "":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}
	return level.NewFilter(logger, opt), nil
}

// loadPermissions reads a permissions file. The file holds either a list of
// permissions or, in the deprecated form, permissions grouped by name.
func loadPermissions(path string) (actions.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return actions.Input{}, err
	}
	return parsePermissions(data)
}

func parsePermissions(data []byte) (actions.Input, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return actions.Input{}, err
	}
	if len(doc.Content) == 0 {
		return actions.List(), nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var perms []types.Permission
		if err := root.Decode(&perms); err != nil {
			return actions.Input{}, err
		}
		return actions.List(perms...), nil
	case yaml.MappingNode:
		groups := make([]actions.Group, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			var perms []types.Permission
			if err := root.Content[i+1].Decode(&perms); err != nil {
				return actions.Input{}, fmt.Errorf("group %s: %w", root.Content[i].Value, err)
			}
			groups = append(groups, actions.Group{Name: root.Content[i].Value, Permissions: perms})
		}
		return actions.Groups(groups...), nil
	default:
		return actions.Input{}, fmt.Errorf("line %d: expected a list of permissions or permissions grouped by name", root.Line)
	}
}
