package provider

import (
	"fmt"
	"strings"
)

// DefaultNames is the provider sequence used when none is configured
var DefaultNames = []string{"tinyurl", "isgd", "cleanuri", "hash"}

type constructor func(Options) Provider

var registry = map[string]constructor{
	"tinyurl":  func(o Options) Provider { return NewTinyURL(o) },
	"isgd":     func(o Options) Provider { return NewIsGd(o) },
	"cleanuri": func(o Options) Provider { return NewCleanURI(o) },
	"hash":     func(o Options) Provider { return NewHash(o) },
}

// Build constructs providers in the given order.
// An unknown or duplicated name fails startup rather than being skipped.
func Build(names []string, opts Options) ([]Provider, error) {
	if len(names) == 0 {
		names = DefaultNames
	}

	seen := make(map[string]bool, len(names))
	providers := make([]Provider, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		ctor, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknown, name, strings.Join(knownNames(), ", "))
		}
		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice", name)
		}
		seen[name] = true
		providers = append(providers, ctor(opts))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return providers, nil
}

// knownNames lists every provider Build understands
func knownNames() []string {
	names := make([]string, 0, len(registry))
	for _, n := range DefaultNames {
		if _, ok := registry[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
