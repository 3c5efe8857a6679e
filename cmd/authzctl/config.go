package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/MrEthical07/goAuthz/jwt"
	"github.com/MrEthical07/goAuthz/permission"
	"github.com/MrEthical07/goAuthz/policy"
)

// duration decodes TOML strings such as "15m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type fileConfig struct {
	JWT struct {
		SigningKey string   `toml:"signing_key"`
		Issuer     string   `toml:"issuer"`
		Audience   string   `toml:"audience"`
		AccessTTL  duration `toml:"access_ttl"`
	} `toml:"jwt"`

	TOTP struct {
		Issuer string `toml:"issuer"`
	} `toml:"totp"`

	Policy struct {
		// Location is an IANA zone name; empty means UTC.
		Location string `toml:"location"`
	} `toml:"policy"`

	// Permissions maps a role to the permission names it is granted.
	Permissions map[string][]string `toml:"permissions"`
	Policies    []policy.Definition `toml:"policies"`
}

func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	if cfg.TOTP.Issuer == "" {
		cfg.TOTP.Issuer = "goAuthz"
	}
	return &cfg, nil
}

func (c *fileConfig) tokenManager(now func() time.Time) (*jwt.Manager, error) {
	if c.JWT.SigningKey == "" {
		return nil, errors.New("jwt.signing_key is not set")
	}
	return jwt.NewManager(jwt.Config{
		SigningKey: []byte(c.JWT.SigningKey),
		Issuer:     c.JWT.Issuer,
		Audience:   c.JWT.Audience,
		AccessTTL:  c.JWT.AccessTTL.Duration,
		Now:        now,
	})
}

func (c *fileConfig) policySet() (*policy.Set, error) {
	return policy.BuildSet(c.Policies)
}

func (c *fileConfig) grants() (*permission.Grants, error) {
	g := permission.NewGrants(nil)
	for role, perms := range c.Permissions {
		if err := g.Grant(role, perms...); err != nil {
			return nil, fmt.Errorf("permissions.%s: %w", role, err)
		}
	}
	return g, nil
}

func (c *fileConfig) location() (*time.Location, error) {
	if c.Policy.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Policy.Location)
}
