package identity

import "net/http"

// Identity is one client disguise presented to the journal platform.
type Identity struct {
	UserAgent string
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var baseHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "max-age=0",
}

const documentAccept = "application/pdf,application/x-pdf"

// Next returns the successor of prev in the user-agent cycle. Pure: the
// result depends only on prev, so rotation is replayable.
func Next(prev Identity) Identity {
	for i, ua := range userAgents {
		if ua == prev.UserAgent {
			return Identity{UserAgent: userAgents[(i+1)%len(userAgents)]}
		}
	}
	return Identity{UserAgent: userAgents[0]}
}

// PoolSize reports how many identities the cycle contains.
func PoolSize() int { return len(userAgents) }

// Apply stamps the identity and courtesy headers onto a page request.
func (id Identity) Apply(h http.Header) {
	h.Set("User-Agent", id.UserAgent)
	for k, v := range baseHeaders {
		h.Set(k, v)
	}
}

// ApplyDocument stamps headers for a PDF download, with the galley page
// as referer.
func (id Identity) ApplyDocument(h http.Header, referer string) {
	id.Apply(h)
	h.Set("Accept", documentAccept)
	if referer != "" {
		h.Set("Referer", referer)
	}
}

// Rotator holds the current identity for call sites. Processing is
// single-threaded, so no locking.
type Rotator struct {
	current Identity
}

func NewRotator() *Rotator { return &Rotator{} }

// Rotate advances to the next identity and returns it.
func (r *Rotator) Rotate() Identity {
	r.current = Next(r.current)
	return r.current
}

// Current returns the identity last produced by Rotate.
func (r *Rotator) Current() Identity { return r.current }
