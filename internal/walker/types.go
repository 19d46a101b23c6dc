package walker

// FileInfo describes a single markdown document discovered beneath the
// workspace root.
type FileInfo struct {
	// AbsPath is the absolute filesystem path.
	AbsPath string

	// RelPath is the path relative to the workspace root using forward
	// slashes, e.g. "myproject/tasks/001-setup.md". It is the document's
	// identity in the index.
	RelPath string

	// Project is the first path component beneath the root.
	Project string

	// Folder is the first component beneath the project directory, or ""
	// for files sitting directly in the project root (e.g. status.md).
	// Deeper nesting still reports the first-level folder.
	Folder string

	// Filename is the base name, e.g. "001-setup.md".
	Filename string

	// MTime is the file modification time in Unix seconds, fractional.
	MTime float64

	// ContentHash is the hex-encoded SHA-256 of the raw file bytes.
	ContentHash string
}

// Result is a single item streamed by Walk. Exactly one of File or Err
// is set. An Err result wrapping a *FileError reports a file that could
// not be read; the walk continues past it. Any other error is terminal
// and is the last result before the channel closes.
type Result struct {
	File *FileInfo
	Err  error
}

// FileError reports a single unreadable or undecodable document. The
// walk recovers from these; consumers typically log and move on.
type FileError struct {
	// Path is the root-relative slash path of the failing file.
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}
