package data

import (
	"encoding/json"
	"io"
	"time"
)

// NewsItem is a single entry of the news feed.
type NewsItem struct {
	Title   string    `json:"title"`
	URL     string    `json:"url,omitempty"`
	Date    time.Time `json:"date,omitempty"`
	Excerpt string    `json:"excerpt,omitempty"`
}

type News []NewsItem

func (n News) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(n) }
