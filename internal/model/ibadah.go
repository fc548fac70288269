package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the kind of an ibadah record. Only the two constants below are valid.
type Category string

const (
	CategoryMandatory Category = "wajib"
	CategoryVoluntary Category = "sunah"
)

// Categories lists the valid categories in display order.
var Categories = []Category{CategoryMandatory, CategoryVoluntary}

// ParseCategory returns the category named by s, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown ibadah category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	return c == CategoryMandatory || c == CategoryVoluntary
}

// Label is the human readable name shown to users.
func (c Category) Label() string {
	switch c {
	case CategoryMandatory:
		return "Wajib"
	case CategoryVoluntary:
		return "Sunah"
	}
	return string(c)
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Ibadah is one persisted observance record as returned by the remote API.
type Ibadah struct {
	ID        int64    `json:"id"`
	Name      string   `json:"nama_ibadah"`
	Category  Category `json:"jenis_ibadah"`
	Date      Date     `json:"tanggal_ibadah"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}
