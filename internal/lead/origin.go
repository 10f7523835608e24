package lead

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// OriginPolicy decides which sites may post leads. A caller is identified by
// its Origin header, or by Referer when Origin is absent.
type OriginPolicy struct {
	prefixes []string
	patterns []*regexp.Regexp
}

// DefaultOrigins are the production site and its preview deploys.
var (
	DefaultOrigins = []string{
		"https://еспасатель.рф",
		"https://www.еспасатель.рф",
		"https://willowy-semolina-1d1e89.netlify.app",
	}
	DefaultOriginPatterns = []string{
		`^https://[a-z0-9-]+--willowy-semolina-1d1e89\.netlify\.app$`,
		`^http://localhost(:\d+)?$`,
	}
)

// NewOriginPolicy compiles an allow-list. prefixes match by string prefix,
// patterns are regular expressions matched against the whole value.
func NewOriginPolicy(prefixes, patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{prefixes: prefixes}
	for _, s := range patterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, eris.Wrapf(err, "lead: compile origin pattern %q", s)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether a request with these headers may post a lead.
func (p *OriginPolicy) Allowed(origin, referer string) bool {
	v := origin
	if v == "" {
		v = referer
	}
	if v == "" {
		return false
	}
	return p.AllowOrigin(v)
}

// AllowOrigin matches a single origin value. Values without a scheme are
// treated as https.
func (p *OriginPolicy) AllowOrigin(v string) bool {
	if !strings.HasPrefix(v, "http") {
		v = "https://" + v
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	for _, re := range p.patterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}
