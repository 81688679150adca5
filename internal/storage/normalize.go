package storage

import (
	"net/url"
	"path"
	"reflect"
	"regexp"
	"strings"

	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
	datePrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)
)

const documentExt = ".md"

// Slugify lower-cases the title and collapses every run of characters
// outside [a-z0-9] into a single hyphen.
func Slugify(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// SlugFromFilename strips the extension and the leading publish date.
func SlugFromFilename(name string) string {
	name = strings.TrimSuffix(name, documentExt)
	return datePrefix.ReplaceAllString(name, "")
}

func isDocument(name string) bool {
	return strings.HasSuffix(name, documentExt) && !strings.HasPrefix(name, "_")
}

// cleanText removes control characters and normalizes whitespace.
func cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// cleanList trims every entry, drops empties and repeats, and keeps order.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = cleanText(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// articleRules is what Create and Update check before writing.
type articleRules struct {
	Title      string `json:"title" validate:"required"`
	Slug       string `json:"slug" validate:"required"`
	Category   string `json:"category" validate:"omitempty,category"`
	CoverImage string `json:"coverImage" validate:"omitempty,coverimage"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		for _, c := range models.Categories {
			if fl.Field().String() == c {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("coverimage", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
			return path.Clean(s) == s || path.Clean(s)+"/" == s
		}
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
	return v
}

func validateRules(v *validator.Validate, rules articleRules) error {
	err := v.Struct(rules)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}
