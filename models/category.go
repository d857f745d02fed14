package models

import "fmt"

// Category is the board a post belongs to. The set is closed.
type Category string

const (
	CategoryCommunity Category = "커뮤니티"
	CategoryDiet      Category = "식단"
	CategoryLibrary   Category = "라이브러리"
)

// Categories lists every board in display order.
var Categories = []Category{CategoryCommunity, CategoryDiet, CategoryLibrary}

// Valid reports whether c is one of the known boards.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a raw post_type value into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("unknown post_type %q", raw)
	}
	return c, nil
}
