package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = template.Must(template.New("").Funcs(template.FuncMap{
	"downloadURL": downloadURL,
	"folderURL":   folderURL,
	"isFolder":    isFolder,
	"humanSize":   humanSize,
}).ParseFS(templateFS, "templates/*.html"))

// listing is the data behind the item list fragment.
type listing struct {
	Path  naming.Path
	Items []models.Item
}

func renderIndex(w io.Writer, items []models.Item) error {
	return views.ExecuteTemplate(w, "index.html", listing{Items: items})
}

func renderItems(w io.Writer, path naming.Path, items []models.Item) error {
	return views.ExecuteTemplate(w, "items.html", listing{Path: path, Items: items})
}

// downloadURL links a file inside path. Split files go through the merged
// route.
func downloadURL(item models.Item, path naming.Path) string {
	route := "/download/"
	if f, ok := item.(models.File); ok && f.Split() {
		route = "/download-merged/"
	}
	return route + joinSegments(append([]string{item.PrimaryID()}, routeSegments(path)...))
}

// folderURL links the listing of folder name inside path.
func folderURL(name string, path naming.Path) string {
	if path.IsRoot() {
		return "/folders/" + url.PathEscape(name)
	}
	return "/folders/" + joinSegments([]string{name, path.Folder})
}

func isFolder(item models.Item) bool {
	_, ok := item.(models.Folder)
	return ok
}

func humanSize(item models.Item) string {
	f, ok := item.(models.File)
	if !ok {
		return ""
	}
	const unit = 1024
	size := f.Size()
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// routeSegments orders a path the way download routes take it: folder
// first, then its parent.
func routeSegments(p naming.Path) []string {
	switch {
	case p.IsRoot():
		return nil
	case p.Parent == "":
		return []string{p.Folder}
	default:
		return []string{p.Folder, p.Parent}
	}
}

func joinSegments(segments []string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
