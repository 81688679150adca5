package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestArticleJSONFieldNames(t *testing.T) {
	article := Article{
		Filename:    "2024-03-05-cctv-for-retail",
		Slug:        "cctv-for-retail",
		Title:       "CCTV for Retail",
		Category:    CategoryCompanyNews,
		PublishedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		Tags:        []string{"cctv"},
		SEOKeywords: []string{},
		Author:      "Red Flag Security Team",
	}

	data, err := json.Marshal(article)
	if err != nil {
		t.Fatalf("Failed to marshal Article: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	for _, key := range []string{"filename", "slug", "publishedAt", "coverImage", "seoKeywords", "featured", "draft"} {
		if _, ok := result[key]; !ok {
			t.Errorf("Expected key %q in JSON, got %v", key, result)
		}
	}
	if result["publishedAt"] != "2024-03-05T09:00:00Z" {
		t.Errorf("Expected RFC3339 publishedAt, got %v", result["publishedAt"])
	}
}

func TestArticleStatus(t *testing.T) {
	a := Article{Draft: true}
	if a.Status() != StatusDraft {
		t.Errorf("Expected draft status, got %s", a.Status())
	}
	a.Draft = false
	if a.Status() != StatusPublished {
		t.Errorf("Expected published status, got %s", a.Status())
	}
}

func TestPatchOmitsUnsetFields(t *testing.T) {
	title := "New"
	data, err := json.Marshal(ArticlePatch{Title: &title})
	if err != nil {
		t.Fatalf("Failed to marshal patch: %v", err)
	}
	if string(data) != `{"title":"New"}` {
		t.Errorf("Unexpected patch JSON: %s", data)
	}
}
