package config

import (
	"sort"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// Route returns the first route whose glob matches service.
func (s SourcesConfig) Route(service string) (SourceRoute, bool) {
	for _, r := range s.Routes {
		if wildcard.Match(r.Match, service) {
			return r, true
		}
	}
	return SourceRoute{}, false
}

// KeywordsFor merges the route keyword table for service with the global keywords and extra terms,
// preserving first-seen order.
func (s SourcesConfig) KeywordsFor(service string, extra ...string) []string {
	var merged []string
	seen := make(map[string]struct{})
	add := func(words []string) {
		for _, w := range words {
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			merged = append(merged, w)
		}
	}
	if r, ok := s.Route(service); ok {
		add(r.Keywords)
	}
	add(s.Keywords)
	add(extra)
	return merged
}

// Services expands the requested service list. Entries containing glob characters are matched
// against the route table's concrete service names; an empty request yields DefaultServices.
func (s SourcesConfig) Services(requested []string) []string {
	if len(requested) == 0 {
		requested = s.DefaultServices
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	known := s.concreteServices()
	for _, req := range requested {
		if !hasGlob(req) {
			add(req)
			continue
		}
		for _, name := range known {
			if wildcard.Match(req, name) {
				add(name)
			}
		}
	}
	return out
}

func (s SourcesConfig) concreteServices() []string {
	var names []string
	for _, svc := range s.DefaultServices {
		if !hasGlob(svc) {
			names = append(names, svc)
		}
	}
	for _, r := range s.Routes {
		if !hasGlob(r.Match) {
			names = append(names, r.Match)
		}
	}
	sort.Strings(names)
	return names
}

func hasGlob(s string) bool {
	for _, c := range s {
		if c == '*' || c == '?' {
			return true
		}
	}
	return false
}
