// Package compliance decides whether automated access to a URL is permitted
// and at what pace. Decisions combine robots.txt directives, a static domain
// policy table, and a terms-of-service violation list; results are cached so
// each domain is evaluated at most once per window.
package compliance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector-cli/internal/cache"
)

// Cache key prefixes and TTL windows. The composite decision is recomputed
// hourly; parsed robots rules live a full day; rate-limit timestamps expire
// after five minutes of inactivity.
const (
	compliancePrefix = "compliance:"
	robotsPrefix     = "robots:"
	rateLimitPrefix  = "ratelimit:"

	complianceTTL = time.Hour
	robotsTTL     = 24 * time.Hour
	rateLimitTTL  = 5 * time.Minute

	robotsTimeout = 5 * time.Second
)

// Config holds the compliance knobs surfaced in configuration.
type Config struct {
	RespectRobots bool
	UserAgent     string
	MinDelay      time.Duration // default inter-request delay per domain
	RulesFile     string        // optional YAML policy override
}

// Decision is the composite verdict for one domain.
type Decision struct {
	Domain       string        `json:"domain"`
	Allowed      bool          `json:"allowed"`
	Reason       string        `json:"reason,omitempty"`
	Restrictions []string      `json:"restrictions,omitempty"`
	RateLimit    time.Duration `json:"rate_limit"`
}

// RateLimitResult is the advisory pacing verdict for one domain.
type RateLimitResult struct {
	Allowed bool
	Wait    time.Duration
}

// ComplianceError marks a failure of the checker itself, as opposed to a
// negative decision. It always carries the URL under evaluation.
type ComplianceError struct {
	URL string
	Err error
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance check failed for %s: %v", e.URL, e.Err)
}

func (e *ComplianceError) Unwrap() error { return e.Err }

// Checker evaluates URLs against robots directives and policy tables. All
// state lives in the shared cache, so every component in the process sees the
// same decisions and rate-limit timestamps.
type Checker struct {
	cfg    Config
	cache  *cache.Cache
	client *http.Client
	rules  *ruleSet
	log    *zap.Logger

	nowFunc func() time.Time
}

// NewChecker builds a checker backed by the shared cache. The rules file, if
// configured, extends the compiled-in policy tables.
func NewChecker(cfg Config, store *cache.Cache) (*Checker, error) {
	rules := defaultRules()
	if cfg.RulesFile != "" {
		if err := rules.mergeFile(cfg.RulesFile); err != nil {
			return nil, eris.Wrap(err, "compliance: load rules file")
		}
	}
	return &Checker{
		cfg:     cfg,
		cache:   store,
		client:  &http.Client{Timeout: robotsTimeout},
		rules:   rules,
		log:     zap.L().With(zap.String("component", "compliance")),
		nowFunc: time.Now,
	}, nil
}

// CheckCompliance returns the composite decision for rawURL, computing and
// caching it when the decision window has lapsed. Only checker-internal
// failures (such as an unparseable URL) produce an error; a disallowed domain
// is a normal decision.
func (c *Checker) CheckCompliance(ctx context.Context, rawURL string) (*Decision, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &ComplianceError{URL: rawURL, Err: eris.Wrap(err, "compliance: parse url")}
	}
	if u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ComplianceError{URL: rawURL, Err: eris.Errorf("compliance: unsupported url %q", rawURL)}
	}

	host := strings.ToLower(u.Hostname())
	key := compliancePrefix + host
	if v, ok := c.cache.Get(key); ok {
		if d, ok := v.(*Decision); ok {
			return d, nil
		}
	}

	d := c.evaluate(ctx, u, host)
	c.cache.Set(key, d, complianceTTL)
	c.log.Debug("compliance decision",
		zap.String("domain", d.Domain),
		zap.Bool("allowed", d.Allowed),
		zap.String("reason", d.Reason),
		zap.Duration("rate_limit", d.RateLimit))
	return d, nil
}

// CheckRateLimit reports whether a request to domain may proceed now. A denial
// leaves the last-request timestamp untouched so the waiting period does not
// restart; an allowance records now as the new timestamp. Advisory only: the
// checker never sleeps on the caller's behalf.
func (c *Checker) CheckRateLimit(domain string) RateLimitResult {
	host := normalizeHost(domain)
	if host == "" {
		return RateLimitResult{Allowed: true}
	}
	key := rateLimitPrefix + host
	now := c.nowFunc()

	if v, ok := c.cache.Get(key); ok {
		if last, ok := v.(time.Time); ok {
			if elapsed := now.Sub(last); elapsed < c.cfg.MinDelay {
				return RateLimitResult{Wait: c.cfg.MinDelay - elapsed}
			}
		}
	}

	c.cache.Set(key, now, rateLimitTTL)
	return RateLimitResult{Allowed: true}
}

func (c *Checker) evaluate(ctx context.Context, u *url.URL, host string) *Decision {
	d := &Decision{Domain: host, Allowed: true}
	matchHost := strings.TrimPrefix(host, "www.")

	robotsAllowed := true
	var robotsDelay time.Duration
	if c.cfg.RespectRobots {
		robotsAllowed, robotsDelay = c.robotsVerdict(ctx, u)
		if !robotsAllowed {
			d.Restrictions = append(d.Restrictions, "robots")
		}
	}

	ruleAllowed := !c.rules.isBlocked(matchHost)
	if !ruleAllowed {
		d.Restrictions = append(d.Restrictions, "blocked-domain")
	} else if note, ok := c.rules.restrictionFor(matchHost); ok {
		d.Restrictions = append(d.Restrictions, note)
	}

	tosAllowed := !c.rules.isTosViolation(matchHost)
	if !tosAllowed {
		d.Restrictions = append(d.Restrictions, "tos-violation")
	}

	d.Allowed = robotsAllowed && ruleAllowed && tosAllowed
	switch {
	case !robotsAllowed:
		d.Reason = "robots.txt disallows " + requestPath(u)
	case !ruleAllowed:
		d.Reason = "domain blocked by policy"
	case !tosAllowed:
		d.Reason = "terms of service prohibit automated access"
	}

	ruleDelay := c.rules.delayFor(matchHost)
	switch {
	case robotsDelay > 0:
		d.RateLimit = robotsDelay
	case ruleDelay > 0:
		d.RateLimit = ruleDelay
	default:
		d.RateLimit = c.cfg.MinDelay
	}
	return d
}

func requestPath(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// normalizeHost lowercases and strips scheme and www prefix from a domain or
// URL string.
func normalizeHost(domain string) string {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if strings.Contains(domain, "://") {
		if u, err := url.Parse(domain); err == nil && u.Hostname() != "" {
			domain = u.Hostname()
		}
	}
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimSuffix(domain, "/")
}
