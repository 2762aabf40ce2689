package clients

// Preview is the link card shown for a tracked URL.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Logo        string `json:"logo,omitempty"`
	SiteName    string `json:"site_name"`
	// Blocked reports that the site answered with a rate-limit or
	// forbidden status, so the card may be incomplete.
	Blocked bool `json:"blocked,omitempty"`
}

// ScraperConfig lists the selectors tried, in order, for each preview field.
type ScraperConfig struct {
	Title        []Selector
	Description  []Selector
	Image        []Selector
	Logo         []Selector
	SiteName     []Selector
	CanonicalURL []Selector
}

type Selector struct {
	Query string
	Attr  string // empty means the element's text
}

func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Title: []Selector{
			{Query: `meta[property="og:title"]`, Attr: "content"},
			{Query: `meta[name="twitter:title"]`, Attr: "content"},
			{Query: "title"},
		},
		Description: []Selector{
			{Query: `meta[property="og:description"]`, Attr: "content"},
			{Query: `meta[name="twitter:description"]`, Attr: "content"},
			{Query: `meta[name="description"]`, Attr: "content"},
		},
		Image: []Selector{
			{Query: `meta[property="og:image"]`, Attr: "content"},
			{Query: `meta[property="og:image:url"]`, Attr: "content"},
			{Query: `meta[name="twitter:image"]`, Attr: "content"},
		},
		Logo: []Selector{
			{Query: `link[rel="apple-touch-icon"]`, Attr: "href"},
			{Query: `link[rel="icon"]`, Attr: "href"},
			{Query: `link[rel="shortcut icon"]`, Attr: "href"},
		},
		SiteName: []Selector{
			{Query: `meta[property="og:site_name"]`, Attr: "content"},
			{Query: `meta[name="application-name"]`, Attr: "content"},
		},
		CanonicalURL: []Selector{
			{Query: `meta[property="og:url"]`, Attr: "content"},
			{Query: `link[rel="canonical"]`, Attr: "href"},
		},
	}
}
