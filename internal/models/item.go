package models

// Item is a browsable catalog element. It is implemented only by File and
// Folder; callers switch on the concrete type.
type Item interface {
	ItemName() string
	PrimaryID() string
	isItem()
}

// File is a reconstructable file: one unsplit entry or an ordered, contiguous
// run of chunk entries. Attachments, when resolved, follow Chunks order.
type File struct {
	Chunks      []CatalogEntry
	Attachments []Attachment
}

// Folder is a virtual container. It never carries attachments.
type Folder struct {
	Entry CatalogEntry
}

func (f File) ItemName() string {
	if len(f.Chunks) == 0 {
		return ""
	}
	return f.Chunks[0].Name
}

// PrimaryID is the message id of the first chunk, used in download links.
func (f File) PrimaryID() string {
	if len(f.Chunks) == 0 {
		return ""
	}
	return f.Chunks[0].MessageID
}

// Split reports whether the file is stored as more than one chunk entry.
func (f File) Split() bool {
	return len(f.Chunks) > 0 && f.Chunks[0].IsChunk()
}

// Size is the sum of resolved attachment sizes.
func (f File) Size() int64 {
	var total int64
	for _, a := range f.Attachments {
		total += a.Size
	}
	return total
}

func (File) isItem() {}

func (f Folder) ItemName() string  { return f.Entry.Name }
func (f Folder) PrimaryID() string { return f.Entry.MessageID }
func (Folder) isItem()             {}
