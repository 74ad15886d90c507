package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults for a profile without profile.toml.
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPollConversations = 15 * time.Second
	DefaultPollMessages      = 5 * time.Second
	DefaultTimeLayout        = "15:04"
)

// Poll holds the poll intervals of the sync engine.
type Poll struct {
	Conversations time.Duration `toml:"conversations"`
	Messages      time.Duration `toml:"messages"`
}

// Profile represents ~/.inbox/profiles/<name>/profile.toml.
type Profile struct {
	APIURL         string        `toml:"api_url"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	Poll           Poll          `toml:"poll"`
	TimeLayout     string        `toml:"time_layout"`
}

// LoadProfile reads a profile file. A missing file yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	p.applyDefaults()
	return &p, nil
}

func (p *Profile) applyDefaults() {
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}
	if p.Poll.Conversations <= 0 {
		p.Poll.Conversations = DefaultPollConversations
	}
	if p.Poll.Messages <= 0 {
		p.Poll.Messages = DefaultPollMessages
	}
	if p.TimeLayout == "" {
		p.TimeLayout = DefaultTimeLayout
	}
}
