package interfaces

// SecretScrubber walks an arbitrary decoded JSON value (or NormalizedItem,
// via its map projection) replacing values matching a fixed regex catalogue
// with a stable "[REDACTED:<kind>]" placeholder. Keys are preserved.
// Idempotent: Scrub(Scrub(x)) == Scrub(x).
type SecretScrubber interface {
	Scrub(value interface{}) interface{}
}
