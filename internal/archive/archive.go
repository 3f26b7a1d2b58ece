package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMemberMissing indicates that a requested member is not in the archive.
var ErrMemberMissing = errors.New("archive member missing")

// Entry describes one member of a release archive.
type Entry struct {
	// Name is the member path inside the archive, slash-separated.
	Name string
	// Path is the source file on disk.
	Path string
	// Mode overrides the member's permissions; zero keeps the source mode.
	Mode os.FileMode
}

// Build writes a deflate-compressed zip archive at path with the entries in
// the given order.
func Build(path string, entries []Entry) (err error) {
	out, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	writer := zip.NewWriter(out)

	for _, entry := range entries {
		if err = addEntry(writer, entry); err != nil {
			return err
		}
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	return nil
}

// addEntry compresses one source file into the archive.
func addEntry(writer *zip.Writer, entry Entry) error {
	source, err := os.Open(filepath.Clean(entry.Path))
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Path, err)
	}

	defer func() {
		// Best-effort cleanup.
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", entry.Path, err)
	}

	mode := entry.Mode
	if mode == 0 {
		mode = info.Mode()
	}

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	header.SetMode(mode)

	member, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", entry.Name, err)
	}

	if _, err = io.Copy(member, source); err != nil {
		return fmt.Errorf("compress %s: %w", entry.Name, err)
	}

	return nil
}

// Reader provides access to a release archive's members.
type Reader struct {
	zr *zip.ReadCloser
}

// Open opens a release archive for reading.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	return &Reader{zr: zr}, nil
}

// Close releases the underlying archive file.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Names returns the member names in archive order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.zr.File))

	for _, file := range r.zr.File {
		names = append(names, file.Name)
	}

	return names
}

// Has reports whether the archive contains a member with the given name.
func (r *Reader) Has(name string) bool {
	return r.find(name) != nil
}

// ReadFile returns the decompressed contents of a member.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	file := r.find(name)
	if file == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrMemberMissing)
	}

	member, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", name, err)
	}

	defer func() {
		// Best-effort cleanup.
		_ = member.Close()
	}()

	contents, err := io.ReadAll(member)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", name, err)
	}

	return contents, nil
}

// find locates a member by exact name.
func (r *Reader) find(name string) *zip.File {
	for _, file := range r.zr.File {
		if file.Name == name {
			return file
		}
	}

	return nil
}
