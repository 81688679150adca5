package models

// Asset is a stored image. Path is the stable logical reference; URL may be
// a signed link that expires.
type Asset struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}
