package urlnorm

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DenyRule blocks hosts matching Pattern unless they also match Unless.
// Both are RE2 expressions searched (not anchored) in the lowercase hostname.
type DenyRule struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Unless  string `mapstructure:"unless" yaml:"unless"`
}

type denyMatcher struct {
	pattern *regexp.Regexp
	unless  *regexp.Regexp
}

func (m denyMatcher) blocks(host string) bool {
	if !m.pattern.MatchString(host) {
		return false
	}
	return m.unless == nil || !m.unless.MatchString(host)
}

// Validator decides which canonical URLs are eligible for the frontier.
type Validator struct {
	deny []denyMatcher
}

// NewValidator compiles the deny rules. Rules with an empty pattern are skipped.
func NewValidator(rules []DenyRule) (*Validator, error) {
	v := &Validator{}
	for i, rule := range rules {
		pattern := strings.TrimSpace(rule.Pattern)
		if pattern == "" {
			continue
		}
		m := denyMatcher{}
		var err error
		if m.pattern, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("deny rule %d pattern: %w", i, err)
		}
		if unless := strings.TrimSpace(rule.Unless); unless != "" {
			if m.unless, err = regexp.Compile(unless); err != nil {
				return nil, fmt.Errorf("deny rule %d unless: %w", i, err)
			}
		}
		v.deny = append(v.deny, m)
	}
	return v, nil
}

// Blocked reports whether any deny rule matches host.
func (v *Validator) Blocked(host string) bool {
	if v == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	for _, m := range v.deny {
		if m.blocks(host) {
			return true
		}
	}
	return false
}

// IsValid accepts absolute http(s) URLs with a host that no deny rule blocks.
func (v *Validator) IsValid(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	return !v.Blocked(host)
}

// Normalize canonicalizes raw and reports whether the result is schedulable.
func (v *Validator) Normalize(raw string) (string, bool) {
	canonical, err := Canonicalize(raw)
	if err != nil || !v.IsValid(canonical) {
		return "", false
	}
	return canonical, true
}

// Resolve resolves href against base, canonicalizes it, and reports whether
// the result is schedulable.
func (v *Validator) Resolve(base, href string) (string, bool) {
	canonical, err := Resolve(base, href)
	if err != nil || !v.IsValid(canonical) {
		return "", false
	}
	return canonical, true
}
