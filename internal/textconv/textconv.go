// Package textconv converts traditional Chinese transcript text to
// simplified. Conversion never fails: when the dictionaries cannot be
// loaded or a conversion errors, text passes through unchanged.
package textconv

import (
	"sync"

	"github.com/longbridgeapp/opencc"

	appLog "lecnote/internal/log"
)

// DefaultProfile is the OpenCC traditional-to-simplified profile.
const DefaultProfile = "t2s"

type converter interface {
	Convert(string) (string, error)
}

// Converter is a lazily initialized OpenCC wrapper, safe for concurrent use.
type Converter struct {
	profile string
	logger  *appLog.Logger

	once sync.Once
	cc   converter
}

// New returns a Converter for profile ("" means DefaultProfile).
func New(profile string, logger *appLog.Logger) *Converter {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Converter{profile: profile, logger: logger}
}

func (c *Converter) load() {
	cc, err := opencc.New(c.profile)
	if err != nil {
		c.logger.Warn("opencc unavailable, text passes through unchanged", "profile", c.profile, "err", err)
		return
	}
	c.cc = cc
}

// ToSimplified converts s, returning it unchanged on any failure.
func (c *Converter) ToSimplified(s string) string {
	if c == nil || s == "" {
		return s
	}
	c.once.Do(c.load)
	if c.cc == nil {
		return s
	}
	out, err := c.cc.Convert(s)
	if err != nil {
		c.logger.Warn("opencc conversion failed, keeping original text", "err", err)
		return s
	}
	return out
}
