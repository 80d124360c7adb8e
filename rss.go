package rescuepost

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

func (a *App) renderRSS(c echo.Context, org Organization, posts []Post) error {
	feedURL := BuildURL(a.Config.URL, "o", org.ID)
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		title := p.Title
		if title == "" {
			title = Excerpt(p.Content, 80)
		}
		items = append(items, rssItem{
			Title:       title,
			Link:        feedURL + "#post-" + p.ID,
			Description: p.FullText(),
			Categories:  platformsToStrings(p.Platforms),
			PubDate:     p.PublishedAt.Format(time.RFC1123Z),
			GUID:        "urn:uuid:" + p.ID,
		})
	}
	description := org.Description
	if description == "" {
		description = "Updates from " + org.Name
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       org.Name,
			Link:        feedURL,
			Description: description,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
