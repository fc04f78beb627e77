package classifier

import "strings"

type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictBrowser
	VerdictClient
)

func (v Verdict) String() string {
	switch v {
	case VerdictBrowser:
		return "browser"
	case VerdictClient:
		return "client"
	default:
		return "unknown"
	}
}

var (
	DefaultBrowserSignatures = []string{"Mozilla", "Chrome", "Safari"}
	DefaultClientSignatures  = []string{"Roblox", "RobloxApp"}
)

// Classifier decides from a User-Agent whether the loader endpoint serves
// real script content. Matching is case-sensitive substring search.
type Classifier struct {
	browser []string
	client  []string
}

func New(browser, client []string) *Classifier {
	return &Classifier{
		browser: clean(browser),
		client:  clean(client),
	}
}

func Default() *Classifier {
	return New(DefaultBrowserSignatures, DefaultClientSignatures)
}

// Classify labels a User-Agent. A browser string that also carries a
// client signature is the client.
func (c *Classifier) Classify(userAgent string) Verdict {
	if containsAny(userAgent, c.client) {
		return VerdictClient
	}

	if containsAny(userAgent, c.browser) {
		return VerdictBrowser
	}

	return VerdictUnknown
}

// ShouldServe is default-allow: only a browser without a client
// signature gets the empty body.
func (c *Classifier) ShouldServe(userAgent string) bool {
	return c.Classify(userAgent) != VerdictBrowser
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

// clean drops blank entries; an empty signature would match everything.
func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
