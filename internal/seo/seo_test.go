package seo

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemap(t *testing.T) {
	mod := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := Sitemap("https://еспасатель.рф/", Pages, mod)
	require.NoError(t, err)

	var set urlset
	require.NoError(t, xml.Unmarshal(out, &set))
	require.Len(t, set.URLs, len(Pages))

	assert.Equal(t, "https://еспасатель.рф", set.URLs[0].Loc)
	assert.Equal(t, "1.0", set.URLs[0].Priority)
	assert.Equal(t, "weekly", set.URLs[0].ChangeFreq)
	assert.Equal(t, "2025-03-01T12:00:00Z", set.URLs[0].LastMod)
	assert.Equal(t, "https://еспасатель.рф/privacy", set.URLs[8].Loc)
	assert.Equal(t, "0.3", set.URLs[8].Priority)

	for _, u := range set.URLs {
		assert.NotContains(t, u.Loc, "/lite")
	}
}

func TestRobots(t *testing.T) {
	got := Robots("https://еспасатель.рф")
	want := "User-Agent: *\nAllow: /\nDisallow: /lite\n\n" +
		"User-Agent: Yandex\nAllow: /\nDisallow: /lite\n\n" +
		"Sitemap: https://еспасатель.рф/sitemap.xml\n"
	assert.Equal(t, want, got)
}
