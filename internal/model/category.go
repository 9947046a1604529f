package model

import (
	"fmt"
	"strings"
)

// CategoryCount is the number of categories a variable is discretised into.
type CategoryCount int

const (
	ThreeCategories CategoryCount = 3
	SevenCategories CategoryCount = 7
)

// Valid reports whether n is a supported category count.
func (n CategoryCount) Valid() bool { return n == ThreeCategories || n == SevenCategories }

// Category is an index into the labels of a CategoryCount.
type Category int

var (
	labels3 = []string{"below", "normal", "above"}
	labels7 = []string{"below3", "below2", "below1", "normal", "above1", "above2", "above3"}
)

// Labels returns the category labels for n, from lowest to highest.
func (n CategoryCount) Labels() []string {
	if n == SevenCategories {
		return labels7
	}
	return labels3
}

// Normal returns the index of the normal category.
func (n CategoryCount) Normal() Category { return Category(int(n) / 2) }

// ParseCategory resolves a label for n.
func ParseCategory(n CategoryCount, label string) (Category, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	for i, l := range n.Labels() {
		if l == label {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q for %d categories (use %s)",
		label, n, strings.Join(n.Labels(), ", "))
}

// Label returns the name of c under n.
func (n CategoryCount) Label(c Category) string { return n.Labels()[c] }

// Block groups categories into below/normal/above.
type Block int

const (
	BlockBelow Block = iota
	BlockNormal
	BlockAbove
)

func (b Block) String() string { return labels3[b] }

// Block returns the below/normal/above block of c.
func (n CategoryCount) Block(c Category) Block {
	switch {
	case c < n.Normal():
		return BlockBelow
	case c > n.Normal():
		return BlockAbove
	}
	return BlockNormal
}

// Members returns the categories belonging to block b under n.
func (n CategoryCount) Members(b Block) []Category {
	var out []Category
	for c := Category(0); int(c) < int(n); c++ {
		if n.Block(c) == b {
			out = append(out, c)
		}
	}
	return out
}
