package config

import (
	"fmt"

	"github.com/nao1215/sitemapper/internal/relay"
)

// RelayEntry is one relay definition in the configuration file. The kind
// is a string in YAML and mapped to the relay.Kind enum by a lookup, so
// an unknown kind is a load-time error rather than silent misbehavior.
type RelayEntry struct {
	// Name identifies the relay in logs.
	Name string `yaml:"name"`

	// Kind is one of "direct", "proxy", or "render".
	Kind string `yaml:"kind"`

	// Endpoint is the relay's URL template. For proxy relays it should
	// contain the "{url}" placeholder.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are relay-specific required headers.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .sitemapper configuration file.
type File struct {
	// Relays are custom relay definitions in priority order.
	Relays []RelayEntry `yaml:"relays,omitempty"`

	// Replace controls whether custom relays replace the built-in chain
	// (true) or are tried before it (false, the default).
	Replace bool `yaml:"replace,omitempty"`
}

// relayKinds maps configuration kind strings to the relay enum.
var relayKinds = map[string]relay.Kind{
	"direct": relay.KindDirect,
	"proxy":  relay.KindProxy,
	"render": relay.KindRender,
}

// RelayChain builds the effective relay list from the file: custom
// relays first, followed by the built-in chain unless Replace is set.
func (f *File) RelayChain() ([]relay.Relay, error) {
	relays := make([]relay.Relay, 0, len(f.Relays)+4)

	for _, entry := range f.Relays {
		kind, ok := relayKinds[entry.Kind]
		if !ok {
			return nil, fmt.Errorf("relay %q: unknown kind %q (want direct, proxy, or render)", entry.Name, entry.Kind)
		}
		relays = append(relays, relay.Relay{
			Name:     entry.Name,
			Kind:     kind,
			Endpoint: entry.Endpoint,
			Headers:  entry.Headers,
		})
	}

	if !f.Replace {
		relays = append(relays, relay.DefaultRelays()...)
	}
	return relays, nil
}
