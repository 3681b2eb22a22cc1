package session

import (
	"strings"

	"github.com/spf13/viper"
)

// Environment keys read by NewConfigFromEnv, without the SESSION_ prefix.
const (
	cfgKeyEndpointURL     = "endpoint_url"
	cfgKeyNamespaceSuffix = "namespace_suffix"
	cfgKeyLoginPath       = "login_path"
	cfgKeyPublicPaths     = "public_paths"
	cfgKeyFiller          = "identifier_filler"
)

// DefaultEndpointURL is used when no backend endpoint is configured.
const DefaultEndpointURL = "http://localhost:3001"

// EnvConfig implements Config from environment values.
type EnvConfig struct {
	EndpointURL     string
	NamespaceSuffix string
	LoginPath       string
	PublicPaths     []string
	Filler          rune
}

var _ Config = (*EnvConfig)(nil)

// NewConfigFromEnv loads configuration from SESSION_* environment variables,
// falling back to documented defaults for everything but the namespace
// suffix, which has no sensible default and must be provided.
func NewConfigFromEnv() (*EnvConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("session")
	v.AutomaticEnv()

	v.SetDefault(cfgKeyEndpointURL, DefaultEndpointURL)
	v.SetDefault(cfgKeyLoginPath, "/login")
	v.SetDefault(cfgKeyPublicPaths, "/login,/register")
	v.SetDefault(cfgKeyFiller, "_")

	suffix := strings.TrimSpace(v.GetString(cfgKeyNamespaceSuffix))
	if suffix == "" {
		return nil, ErrMissingNamespaceSuffix
	}

	filler := '_'
	if s := v.GetString(cfgKeyFiller); s != "" {
		filler = []rune(s)[0]
	}

	return &EnvConfig{
		EndpointURL:     v.GetString(cfgKeyEndpointURL),
		NamespaceSuffix: suffix,
		LoginPath:       v.GetString(cfgKeyLoginPath),
		PublicPaths:     splitPaths(v.GetString(cfgKeyPublicPaths)),
		Filler:          filler,
	}, nil
}

func (c *EnvConfig) GetEndpointURL() string {
	if c.EndpointURL == "" {
		return DefaultEndpointURL
	}
	return c.EndpointURL
}

func (c *EnvConfig) GetNamespaceSuffix() string {
	return c.NamespaceSuffix
}

func (c *EnvConfig) GetLoginPath() string {
	if c.LoginPath == "" {
		return "/login"
	}
	return c.LoginPath
}

func (c *EnvConfig) GetPublicPaths() []string {
	if len(c.PublicPaths) == 0 {
		return []string{"/login", "/register"}
	}
	return c.PublicPaths
}

func (c *EnvConfig) GetFillerRune() rune {
	if c.Filler == 0 {
		return '_'
	}
	return c.Filler
}

func splitPaths(raw string) []string {
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
