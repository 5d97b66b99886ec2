package compliance

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk override format for the policy tables. Entries
// extend the compiled-in defaults; nothing can be un-blocked from a file.
type RulesFile struct {
	BlockedDomains []string          `yaml:"blocked_domains"`
	TosViolations  []string          `yaml:"tos_violations"`
	DomainDelays   map[string]string `yaml:"domain_delays"` // duration strings, e.g. "5s"
	Restricted     map[string]string `yaml:"restricted"`    // domain -> restriction note
}

// ruleSet holds the effective domain policy. Matching is suffix-based: a rule
// for example.com covers example.com and any subdomain.
type ruleSet struct {
	blocked    map[string]struct{}
	tos        map[string]struct{}
	delays     map[string]time.Duration
	restricted map[string]string
}

// defaultRules is the compiled-in policy: social networks are off limits
// outright (and their terms prohibit scraping), LinkedIn is reachable but
// explicitly throttled.
func defaultRules() *ruleSet {
	return &ruleSet{
		blocked: domainSet(
			"facebook.com",
			"instagram.com",
			"tiktok.com",
			"twitter.com",
			"x.com",
		),
		tos: domainSet(
			"facebook.com",
			"instagram.com",
			"tiktok.com",
		),
		delays: map[string]time.Duration{
			"linkedin.com": 5 * time.Second,
		},
		restricted: map[string]string{
			"linkedin.com": "professional network, throttled access",
		},
	}
}

func domainSet(domains ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		s[d] = struct{}{}
	}
	return s
}

// mergeFile layers a YAML rules file on top of the defaults.
func (r *ruleSet) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return eris.Wrapf(err, "parse %s", path)
	}
	return r.merge(&file)
}

func (r *ruleSet) merge(file *RulesFile) error {
	for _, d := range file.BlockedDomains {
		if d = cleanDomain(d); d != "" {
			r.blocked[d] = struct{}{}
		}
	}
	for _, d := range file.TosViolations {
		if d = cleanDomain(d); d != "" {
			r.tos[d] = struct{}{}
		}
	}
	for d, raw := range file.DomainDelays {
		delay, err := time.ParseDuration(raw)
		if err != nil {
			return eris.Wrapf(err, "delay for %s", d)
		}
		if d = cleanDomain(d); d != "" {
			r.delays[d] = delay
		}
	}
	for d, note := range file.Restricted {
		if d = cleanDomain(d); d != "" {
			r.restricted[d] = note
		}
	}
	return nil
}

func cleanDomain(d string) string {
	return strings.TrimPrefix(strings.TrimSpace(strings.ToLower(d)), "www.")
}

func (r *ruleSet) isBlocked(host string) bool {
	return matchDomainSet(r.blocked, host)
}

func (r *ruleSet) isTosViolation(host string) bool {
	return matchDomainSet(r.tos, host)
}

func (r *ruleSet) delayFor(host string) time.Duration {
	for d, delay := range r.delays {
		if hostMatches(host, d) {
			return delay
		}
	}
	return 0
}

func (r *ruleSet) restrictionFor(host string) (string, bool) {
	for d, note := range r.restricted {
		if hostMatches(host, d) {
			return note, true
		}
	}
	return "", false
}

func matchDomainSet(set map[string]struct{}, host string) bool {
	for d := range set {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}

// hostMatches reports whether host is domain itself or a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
