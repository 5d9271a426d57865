package cache

// Entry represents one servable resource of a cache generation.
// Entries are never modified once published.
type Entry struct {
	// Path is the lookup key: leading slash, forward separators
	Path string
	// Data is the content of the file
	Data []byte
	// MIME is the content type, shared between entries
	MIME string
	// Hash is the full hash of Path, not reduced to the table size
	Hash uint64
}

// Len returns the content length of the entry
func (e *Entry) Len() int {
	return len(e.Data)
}

func newEntry(path string, data []byte) *Entry {
	return &Entry{
		Path: path,
		Data: data,
		MIME: MimeType(path),
		Hash: hash(path),
	}
}
