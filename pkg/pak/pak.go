// Package pak provides reading and writing of Quake PAK archives.
package pak

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Faultbox/mdlcore/pkg/encoding"
)

const (
	pakMagic     = "PACK"
	headerSize   = 12
	entrySize    = 64
	entryNameLen = 56
)

// Archive errors.
var (
	ErrInvalidMagic  = errors.New("invalid PAK magic")
	ErrCorruptTable  = errors.New("corrupt PAK directory")
	ErrFileNotFound  = errors.New("file not found in archive")
	ErrNameTooLong   = errors.New("PAK entry name too long")
	ErrArchiveClosed = errors.New("archive closed")
)

// Archive represents an opened PAK archive.
type Archive struct {
	file     *os.File
	size     int64
	header   Header
	fileList map[string]*Entry
}

// Header contains PAK file header information.
type Header struct {
	Magic     [4]byte
	DirOffset uint32
	DirLength uint32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Open opens a PAK archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	archive := &Archive{
		file:     file,
		size:     info.Size(),
		fileList: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading file table: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.file, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	if string(a.header.Magic[:]) != pakMagic {
		return ErrInvalidMagic
	}
	return nil
}

func (a *Archive) readFileTable() error {
	h := a.header
	if h.DirLength%entrySize != 0 || int64(h.DirOffset)+int64(h.DirLength) > a.size {
		return fmt.Errorf("%w: directory %d+%d in %d-byte file", ErrCorruptTable, h.DirOffset, h.DirLength, a.size)
	}

	table := make([]byte, h.DirLength)
	if _, err := a.file.ReadAt(table, int64(h.DirOffset)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	for offset := 0; offset < len(table); offset += entrySize {
		raw := table[offset : offset+entrySize]
		entry := &Entry{
			Name:   normalizePath(encoding.FixedStringToUTF8(raw[:entryNameLen])),
			Offset: binary.LittleEndian.Uint32(raw[entryNameLen:]),
			Size:   binary.LittleEndian.Uint32(raw[entryNameLen+4:]),
		}
		if int64(entry.Offset)+int64(entry.Size) > a.size {
			return fmt.Errorf("%w: %s extends past end of file", ErrCorruptTable, entry.Name)
		}
		a.fileList[entry.Name] = entry
	}

	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[normalizePath(path)]
	return ok
}

// Stat returns the directory entry of a file.
func (a *Archive) Stat(path string) (*Entry, bool) {
	entry, ok := a.fileList[normalizePath(path)]
	return entry, ok
}

// Read reads a file from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	if a.file == nil {
		return nil, ErrArchiveClosed
	}

	entry, ok := a.fileList[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	data := make([]byte, entry.Size)
	if _, err := a.file.ReadAt(data, int64(entry.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// File is one file to store in a new archive.
type File struct {
	Name string
	Data []byte
}

// Write stores files as a PAK archive: header, file data, then directory.
func Write(w io.Writer, files []File) error {
	dataSize := 0
	for _, f := range files {
		if len(f.Name) >= entryNameLen {
			return fmt.Errorf("%w: %s", ErrNameTooLong, f.Name)
		}
		dataSize += len(f.Data)
	}

	header := Header{
		DirOffset: uint32(headerSize + dataSize),
		DirLength: uint32(len(files) * entrySize),
	}
	copy(header.Magic[:], pakMagic)
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}

	for _, f := range files {
		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}

	offset := uint32(headerSize)
	for _, f := range files {
		raw := make([]byte, entrySize)
		copy(raw, encoding.UTF8ToFixedString(f.Name, entryNameLen))
		binary.LittleEndian.PutUint32(raw[entryNameLen:], offset)
		binary.LittleEndian.PutUint32(raw[entryNameLen+4:], uint32(len(f.Data)))
		if _, err := w.Write(raw); err != nil {
			return err
		}
		offset += uint32(len(f.Data))
	}
	return nil
}

// WriteFile creates a PAK archive at path.
func WriteFile(path string, files []File) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := Write(file, files); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
