// Package seo renders sitemap.xml and robots.txt for the public pages.
package seo

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Page is one sitemap entry relative to the site root.
type Page struct {
	Path       string
	ChangeFreq string
	Priority   float64
}

// Pages are the indexable pages. /lite is deliberately absent.
var Pages = []Page{
	{"", "weekly", 1},
	{"/dtp", "monthly", 0.9},
	{"/europrotocol", "monthly", 0.9},
	{"/osago", "monthly", 0.9},
	{"/insurance", "monthly", 0.9},
	{"/evacuation", "monthly", 0.9},
	{"/evacuation-request", "monthly", 0.9},
	{"/repair", "monthly", 0.9},
	{"/privacy", "yearly", 0.3},
	{"/cookies", "yearly", 0.3},
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []entry  `xml:"url"`
}

type entry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap renders the sitemap for baseURL with every page modified at
// lastMod.
func Sitemap(baseURL string, pages []Page, lastMod time.Time) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")
	set := urlset{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range pages {
		set.URLs = append(set.URLs, entry{
			Loc:        base + p.Path,
			LastMod:    lastMod.UTC().Format(time.RFC3339),
			ChangeFreq: p.ChangeFreq,
			Priority:   strconv.FormatFloat(p.Priority, 'f', 1, 64),
		})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "seo: marshal sitemap")
	}
	return append([]byte(xml.Header), out...), nil
}

// Robots renders robots.txt: the lite pages are hidden from all crawlers
// and from Yandex explicitly.
func Robots(baseURL string) string {
	var b strings.Builder
	for _, agent := range []string{"*", "Yandex"} {
		b.WriteString("User-Agent: " + agent + "\n")
		b.WriteString("Allow: /\n")
		b.WriteString("Disallow: /lite\n\n")
	}
	b.WriteString("Sitemap: " + strings.TrimRight(baseURL, "/") + "/sitemap.xml\n")
	return b.String()
}
