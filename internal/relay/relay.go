package relay

import "strings"

// Kind identifies how a relay is invoked.
type Kind int

const (
	// KindDirect fetches the target URL with a plain GET, optionally
	// through a SOCKS5 proxy.
	KindDirect Kind = iota

	// KindProxy fetches through a pass-through HTTP proxy whose endpoint
	// template embeds the target URL as a query parameter or path suffix.
	KindProxy

	// KindRender invokes a server-side rendering service over POST. This
	// is the last-resort relay for pages that only materialize their
	// markup in a browser.
	KindRender
)

// String returns the lowercase name of the relay kind.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindProxy:
		return "proxy"
	case KindRender:
		return "render"
	default:
		return "unknown"
	}
}

// urlPlaceholder marks where the query-escaped target URL is substituted
// in a proxy relay's endpoint template.
const urlPlaceholder = "{url}"

// Relay is one configured entry in the chain.
type Relay struct {
	// Name identifies the relay in logs and diagnostics.
	Name string `yaml:"name"`

	// Kind selects the invocation protocol.
	Kind Kind `yaml:"-"`

	// Endpoint is the relay's own URL. For KindProxy it is a template
	// containing "{url}"; for KindRender it is the POST endpoint; for
	// KindDirect it is unused.
	Endpoint string `yaml:"endpoint"`

	// Headers are relay-specific required headers applied to every
	// attempt through this relay. Some public proxies refuse requests
	// without a requested-with marker.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Target builds the URL to request for a proxy relay, substituting the
// escaped target into the endpoint template. If the template carries no
// placeholder the target is appended as a path suffix.
func (r Relay) Target(escaped string) string {
	if strings.Contains(r.Endpoint, urlPlaceholder) {
		return strings.Replace(r.Endpoint, urlPlaceholder, escaped, 1)
	}
	return r.Endpoint + escaped
}

// DefaultRenderEndpoint is the rendering service used when no custom
// render relay is configured.
const DefaultRenderEndpoint = "https://render.sitemapper.app/api/render"

// DefaultRelays returns the built-in relay chain in priority order:
// a direct fetch, two public pass-through proxies, and the rendering
// service as the last resort.
func DefaultRelays() []Relay {
	return []Relay{
		{
			Name: "direct",
			Kind: KindDirect,
		},
		{
			Name:     "allorigins",
			Kind:     KindProxy,
			Endpoint: "https://api.allorigins.win/raw?url=" + urlPlaceholder,
		},
		{
			Name:     "corsproxy",
			Kind:     KindProxy,
			Endpoint: "https://corsproxy.io/?" + urlPlaceholder,
			Headers: map[string]string{
				"X-Requested-With": "XMLHttpRequest",
			},
		},
		{
			Name:     "render",
			Kind:     KindRender,
			Endpoint: DefaultRenderEndpoint,
		},
	}
}
