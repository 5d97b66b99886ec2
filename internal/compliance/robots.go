package compliance

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxRobotsBody bounds how much of a robots.txt response is read.
const maxRobotsBody = 512 << 10

// robotsRules is the parsed subset of a robots.txt file that applies to the
// configured bot identity: accumulated Disallow prefixes and the last
// Crawl-delay seen in an applying block.
type robotsRules struct {
	disallow   []string
	crawlDelay time.Duration
}

// robotsVerdict resolves the robots rules for the URL's host (from cache or
// the network) and evaluates the request path against them. Returns whether
// the path is allowed and any crawl delay the file requests.
func (c *Checker) robotsVerdict(ctx context.Context, u *url.URL) (bool, time.Duration) {
	host := strings.ToLower(u.Hostname())
	key := robotsPrefix + host

	var rules *robotsRules
	if v, ok := c.cache.Get(key); ok {
		rules, _ = v.(*robotsRules)
	}
	if rules == nil {
		var cacheable bool
		rules, cacheable = c.fetchRobots(ctx, u.Scheme, u.Host)
		if cacheable {
			c.cache.Set(key, rules, robotsTTL)
		}
	}

	path := requestPath(u)
	for _, prefix := range rules.disallow {
		if strings.HasPrefix(path, prefix) {
			return false, rules.crawlDelay
		}
	}
	return true, rules.crawlDelay
}

// fetchRobots retrieves and parses <scheme>://<host>/robots.txt. Every failure
// mode degrades to "no restrictions": a non-success status is a definitive
// empty ruleset (cacheable), while transport errors skip the cache so the next
// window retries the fetch.
func (c *Checker) fetchRobots(ctx context.Context, scheme, hostport string) (*robotsRules, bool) {
	robotsURL := scheme + "://" + hostport + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		c.log.Warn("robots request build failed, allowing access",
			zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}, false
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("robots fetch failed, allowing access",
			zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &robotsRules{}, true
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		c.log.Warn("robots body read failed, allowing access",
			zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}, false
	}

	return parseRobots(string(body), c.cfg.UserAgent), true
}

// parseRobots walks a robots.txt body line by line. A User-agent block applies
// when its token is "*", the literal "bot", or a case-insensitive substring of
// the configured identity. Disallow prefixes accumulate across all applying
// blocks; the last Crawl-delay in an applying block wins.
func parseRobots(body, identity string) *robotsRules {
	rules := &robotsRules{}
	ident := strings.ToLower(identity)

	applies := false
	inAgentRun := false

	for _, raw := range strings.Split(body, "\n") {
		line := raw
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		if field == "user-agent" {
			// Consecutive User-agent lines share one block.
			match := agentApplies(value, ident)
			if inAgentRun {
				applies = applies || match
			} else {
				applies = match
			}
			inAgentRun = true
			continue
		}
		inAgentRun = false

		if !applies {
			continue
		}
		switch field {
		case "disallow":
			if value != "" {
				rules.disallow = append(rules.disallow, value)
			}
		case "crawl-delay":
			if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
				rules.crawlDelay = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return rules
}

func agentApplies(token, identity string) bool {
	tok := strings.ToLower(token)
	if tok == "*" || tok == "bot" {
		return true
	}
	return tok != "" && strings.Contains(identity, tok)
}
