package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/liveboard"
	"github.com/jpalmerr/liveboard/history"
)

// BuildPanels converts parsed configuration into SDK Panel values.
//
// Every panel is backed by an [liveboard.HTTPSource] with the configured
// method, headers, rate limit and transform.
func BuildPanels(cfg *Config) ([]liveboard.Panel, error) {
	panels := make([]liveboard.Panel, 0, len(cfg.Panels))
	for _, pc := range cfg.Panels {
		p, err := buildPanel(pc)
		if err != nil {
			return nil, fmt.Errorf("panel %q: %w", pc.Name, err)
		}
		panels = append(panels, p)
	}
	return panels, nil
}

// buildPanel converts a single PanelConfig to an SDK Panel.
func buildPanel(pc PanelConfig) (liveboard.Panel, error) {
	var srcOpts []liveboard.HTTPOption

	if pc.Method != "" {
		srcOpts = append(srcOpts, liveboard.WithMethod(pc.Method))
	}

	if len(pc.Headers) > 0 {
		srcOpts = append(srcOpts, liveboard.WithHeaders(mapToKeyValuePairs(pc.Headers)...))
	}

	if pc.RateLimit != 0 {
		srcOpts = append(srcOpts, liveboard.WithRateLimit(pc.RateLimit.Duration()))
	}

	transform, err := buildTransform(pc.Transform)
	if err != nil {
		return liveboard.Panel{}, err
	}
	if pc.Wrap != "" {
		transform = liveboard.Wrap(pc.Wrap, transform)
	}
	srcOpts = append(srcOpts, liveboard.WithTransform(transform))

	src, err := liveboard.NewHTTPSource(pc.URL, srcOpts...)
	if err != nil {
		return liveboard.Panel{}, err
	}

	opts := []liveboard.PanelOption{
		liveboard.WithInterval(pc.Interval.Duration()),
		liveboard.WithTTL(pc.TTL.Duration()),
		liveboard.WithPersist(pc.Persist),
	}
	if pc.Timeout != 0 {
		opts = append(opts, liveboard.WithTimeout(pc.Timeout.Duration()))
	}
	if len(pc.Placeholder) > 0 {
		opts = append(opts, liveboard.WithPlaceholder(pc.Placeholder))
	}

	return liveboard.NewPanel(pc.Name, src, opts...)
}

// buildTransform converts a TransformConfig to an SDK Transform.
func buildTransform(tc TransformConfig) (liveboard.Transform, error) {
	switch tc.Type {
	case "", "default":
		return liveboard.DefaultTransform, nil
	case "raw":
		return liveboard.RawJSON, nil
	case "text":
		return liveboard.Text, nil
	case "json":
		return liveboard.JSONPath(tc.Path), nil
	case "regex":
		return liveboard.Regex(tc.Pattern, tc.Fields...)
	default:
		return nil, fmt.Errorf("unknown transform type %q", tc.Type)
	}
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// HistoryConfig returns the history store settings described by cfg.
func HistoryConfig(cfg *Config) history.Config {
	return history.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Duration(),
	}
}
