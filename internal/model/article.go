package model

// Article is the canonical shape of a Qiita post as it is written to Notion.
// URL is the natural key used to match existing pages.
type Article struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Author    string   `json:"author"`
	Likes     int      `json:"likes"`
	Stocks    int      `json:"stocks"`
	Tags      []string `json:"tags"`
	Summary   string   `json:"summary"`
	CreatedAt string   `json:"created_at,omitempty"`
}
