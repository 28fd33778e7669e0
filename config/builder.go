package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/keepwarm"
)

// BuildConfiguration converts parsed configuration into the SDK
// Configuration.
//
// The result is normalized: defaults are applied and the interval is
// clamped. Returns an error if the URL is missing or any value is invalid.
func BuildConfiguration(cfg *Config) (keepwarm.Configuration, error) {
	body, err := buildBody(cfg)
	if err != nil {
		return keepwarm.Configuration{}, err
	}

	out := keepwarm.Configuration{
		URL:        cfg.URL,
		Method:     cfg.Method,
		Headers:    keepwarm.MergeHeaders(nil, cfg.Headers),
		Body:       body,
		Interval:   cfg.Interval.Duration(),
		MaxHistory: cfg.MaxHistory,
	}

	return out.Normalize()
}

// buildBody converts the YAML body into an SDK Body.
func buildBody(cfg *Config) (keepwarm.Body, error) {
	node := cfg.Body
	if node.Kind == 0 {
		return keepwarm.NoBody(), nil
	}

	if cfg.BodyType == BodyTypeRaw {
		var s string
		if err := node.Decode(&s); err != nil {
			return keepwarm.Body{}, fmt.Errorf("body: %w", err)
		}
		if s == "" {
			return keepwarm.NoBody(), nil
		}
		return keepwarm.RawBody(s), nil
	}

	return keepwarm.StructuredBody(cloneNode(&node)), nil
}

// cloneNode deep-copies a YAML node so the SDK body does not share
// structure with the Config it came from.
func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Alias != nil {
		out.Alias = cloneNode(n.Alias)
	}
	if len(n.Content) > 0 {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = cloneNode(c)
		}
	}
	return &out
}
