// Package seed holds the demo data shipped with the server: default chats for
// new users and the offline quote list for the auto-reply bot.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Message is a sample message placed in a seeded chat.
type Message struct {
	Sender  string        `yaml:"sender"`
	Content string        `yaml:"content"`
	Ago     time.Duration `yaml:"ago"`
}

// Chat is a default contact.
type Chat struct {
	FirstName string    `yaml:"first_name"`
	LastName  string    `yaml:"last_name"`
	Messages  []Message `yaml:"messages"`
}

// Defaults is the parsed contents of defaults.yaml.
type Defaults struct {
	Chats          []Chat   `yaml:"chats"`
	FallbackQuotes []string `yaml:"fallback_quotes"`
}

// Parse decodes a defaults document and checks it is usable.
func Parse(raw []byte) (*Defaults, error) {
	var d Defaults
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse seed defaults: %w", err)
	}
	for i, c := range d.Chats {
		if c.FirstName == "" || c.LastName == "" {
			return nil, fmt.Errorf("seed chat %d has an empty name", i)
		}
		for _, m := range c.Messages {
			if m.Sender != "user" && m.Sender != "system" {
				return nil, fmt.Errorf("seed chat %d: unknown sender %q", i, m.Sender)
			}
		}
	}
	if len(d.FallbackQuotes) == 0 {
		return nil, fmt.Errorf("seed defaults: no fallback quotes")
	}
	return &d, nil
}

// Load returns the embedded defaults. The file is compiled in, so a parse
// failure is a programming error.
func Load() *Defaults {
	d, err := Parse(defaultsYAML)
	if err != nil {
		panic(err)
	}
	return d
}
