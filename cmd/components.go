package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/espasatel/espasatel/internal/advisor"
	"github.com/espasatel/espasatel/internal/catalog"
	"github.com/espasatel/espasatel/internal/config"
	"github.com/espasatel/espasatel/internal/litemode"
)

// components are the decision tables every command works from.
type components struct {
	catalog    *catalog.Catalog
	graph      *advisor.Graph
	classifier *litemode.Classifier
	cookies    litemode.Cookies
}

// loadComponents builds the catalog, graph and classifier. Configured paths
// replace the compiled-in tables; either way they are validated here so a
// bad table stops the process before it serves anything.
func loadComponents(c *config.Config) (*components, error) {
	out := &components{
		catalog: catalog.Default(),
		graph:   advisor.Default(),
	}

	if c.Catalog.Path != "" {
		cat, err := catalog.LoadFile(c.Catalog.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load catalog")
		}
		out.catalog = cat
		zap.L().Info("catalog loaded from file", zap.String("path", c.Catalog.Path))
	}
	if c.Advisor.Path != "" {
		g, err := advisor.LoadFile(c.Advisor.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load advisor graph")
		}
		out.graph = g
		zap.L().Info("advisor graph loaded from file", zap.String("path", c.Advisor.Path))
	}

	cl, err := litemode.NewClassifier(litemode.Config{
		SlowDownlinkMbps: c.LiteMode.SlowDownlinkMbps,
		SlowRTTMs:        c.LiteMode.SlowRTTMs,
		SlowECT:          c.LiteMode.SlowECT,
		UAPatterns:       c.LiteMode.UAPatterns,
	})
	if err != nil {
		return nil, err
	}
	out.classifier = cl

	out.cookies = litemode.DefaultCookies()
	if c.LiteMode.AutoMaxAgeSecs > 0 {
		out.cookies.AutoMaxAge = time.Duration(c.LiteMode.AutoMaxAgeSecs) * time.Second
	}
	if c.LiteMode.PrefMaxAgeDays > 0 {
		out.cookies.PrefMaxAge = time.Duration(c.LiteMode.PrefMaxAgeDays) * 24 * time.Hour
	}
	return out, nil
}
