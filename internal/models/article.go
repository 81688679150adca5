package models

import "time"

// Category values accepted for new and updated articles.
const (
	CategoryCompanyNews      = "company-news"
	CategorySecurityTips     = "security-tips"
	CategoryIndustryInsights = "industry-insights"
	CategoryCaseStudies      = "case-studies"
	CategoryProductUpdates   = "product-updates"
)

// Categories lists the accepted categories in display order.
var Categories = []string{
	CategoryCompanyNews,
	CategorySecurityTips,
	CategoryIndustryInsights,
	CategoryCaseStudies,
	CategoryProductUpdates,
}

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Article is a fully populated article record. Decoding fills every field,
// so a zero value never reaches callers for a field the document omitted.
type Article struct {
	Filename    string    `json:"filename"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"publishedAt"`
	CoverImage  string    `json:"coverImage"`
	Tags        []string  `json:"tags"`
	SEOKeywords []string  `json:"seoKeywords"`
	Author      string    `json:"author"`
	Featured    bool      `json:"featured"`
	Draft       bool      `json:"draft"`
	Content     string    `json:"content"`
}

// Status reports the article's publication state.
func (a *Article) Status() string {
	if a.Draft {
		return StatusDraft
	}
	return StatusPublished
}

// NewArticle carries the caller-supplied fields for a create. A zero
// PublishedAt means "now" and an empty Category or Author takes the
// store's default.
type NewArticle struct {
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"publishedAt"`
	CoverImage  string    `json:"coverImage"`
	Tags        []string  `json:"tags"`
	SEOKeywords []string  `json:"seoKeywords"`
	Author      string    `json:"author"`
	Featured    bool      `json:"featured"`
	Draft       bool      `json:"draft"`
}

// ArticlePatch holds the fields of a partial update; nil means unchanged.
type ArticlePatch struct {
	Title       *string    `json:"title,omitempty"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	Category    *string    `json:"category,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CoverImage  *string    `json:"coverImage,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	SEOKeywords *[]string  `json:"seoKeywords,omitempty"`
	Author      *string    `json:"author,omitempty"`
	Featured    *bool      `json:"featured,omitempty"`
	Draft       *bool      `json:"draft,omitempty"`
	Content     *string    `json:"content,omitempty"`
}
