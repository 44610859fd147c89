// Package relay fetches remote pages through an ordered chain of
// fallback network relays.
//
// A relay is an intermediary used to perform a fetch on the crawler's
// behalf: a direct HTTP GET, a pass-through proxy that takes the target
// URL as a query parameter, or a server-side rendering service invoked
// over a small POST protocol. Relays are attempted in a fixed priority
// order and the first one that returns a 2xx response with a readable
// body wins.
//
// Design decision: Each relay carries an explicit Kind tag in its
// configuration entry rather than being classified by substring matching
// on its endpoint. Classification is a lookup, and adding a relay never
// requires touching dispatch logic.
//
// Relay-level failures are not surfaced until the whole chain is
// exhausted; the synthesized error classifies the last underlying failure
// so callers can render different guidance for "blocked" versus
// "unreachable" sites.
package relay
