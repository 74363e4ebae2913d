// Package catalog exposes the on-disk CV template assets.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cv_builder_bot/internal/domain"
)

const templateExtension = ".docx"

// Catalog locates CV template files by tier inside a fixed directory.
type Catalog struct {
	dir string
}

// New constructs a Catalog rooted at the given template directory.
func New(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Path returns the expected template file path for a tier.
func (c *Catalog) Path(tier domain.Tier) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s%s", tier, templateExtension))
}

// Exists reports whether the template file for a tier is present.
func (c *Catalog) Exists(tier domain.Tier) bool {
	if c == nil {
		return false
	}

	info, err := os.Stat(c.Path(tier))
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}
