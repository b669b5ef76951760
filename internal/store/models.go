package store

// Unit is one embeddable record: a chunk of a file, or a whole file
// represented by its summary. Content is what gets embedded; Original
// holds the full file content in file granularity (empty otherwise) and
// is substituted for the summary when assembling answer context.
type Unit struct {
	ID       int64
	Source   string
	Ext      string
	Seq      int
	Content  string
	Original string
}

// SearchResult is a unit with its similarity distance.
type SearchResult struct {
	Unit     Unit
	Distance float64
}
