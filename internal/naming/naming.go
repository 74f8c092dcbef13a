// Package naming assigns collision-free display names within a scope and
// walks folder paths back to the scope they name.
package naming

import (
	"fmt"
	"strings"
)

// SplitExt splits name into stem and extension (with its dot). A leading dot
// alone does not start an extension, so ".env" has no extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// Disambiguate returns proposed if it is not among existing. Otherwise it
// counts the existing names that start with proposed's stem and inserts
// " (<count>)" before the extension, bumping the count until the result is
// unused.
func Disambiguate(proposed string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}
	if _, ok := taken[proposed]; !ok {
		return proposed
	}

	stem, ext := SplitExt(proposed)
	count := 0
	for _, n := range existing {
		if strings.HasPrefix(n, stem) {
			count++
		}
	}

	for {
		candidate := fmt.Sprintf("%s (%d)%s", stem, count, ext)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
		count++
	}
}

// MaxDepth is the deepest folder nesting allowed below root.
const MaxDepth = 2

// Path is an optional folder scope: Folder inside Parent inside root. An
// empty Folder means root.
type Path struct {
	Folder string
	Parent string
}

// NewPath normalises raw request values. A parent without a folder is
// treated as the folder itself.
func NewPath(folder, parent string) Path {
	folder = strings.TrimSpace(folder)
	parent = strings.TrimSpace(parent)
	if folder == "" {
		folder, parent = parent, ""
	}
	return Path{Folder: folder, Parent: parent}
}

// IsRoot reports whether the path names the root scope.
func (p Path) IsRoot() bool {
	return p.Folder == ""
}

// Segments returns folder names from the outermost in.
func (p Path) Segments() []string {
	switch {
	case p.Folder == "":
		return nil
	case p.Parent == "":
		return []string{p.Folder}
	default:
		return []string{p.Parent, p.Folder}
	}
}

// ParentPath is the scope containing p's folder.
func (p Path) ParentPath() Path {
	return Path{Folder: p.Parent}
}

func (p Path) String() string {
	return "/" + strings.Join(p.Segments(), "/")
}

// ValidName rejects names that cannot be stored or addressed in a URL path.
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\\")
}
