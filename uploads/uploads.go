// Package uploads converts inbound base64 data-URI payloads into files under
// a fixed public uploads directory and deletes them again on request. A
// profile record only ever holds the returned path as a plain string; nothing
// here tracks which profile references which file.
package uploads

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidPayload indicates the payload is not a parseable
	// data:<mime>;base64,<data> string.
	ErrInvalidPayload = errors.New("invalid file data format")

	// ErrInvalidFilename indicates a delete request whose filename failed
	// strict validation. The file system is never touched in this case.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrFileNotFound indicates the named file does not exist in the
	// uploads directory.
	ErrFileNotFound = errors.New("file not found")
)

// dataURIPattern matches data-URI payloads: data:<mime>;base64,<data>.
var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z0-9.+-]+/[A-Za-z0-9.+-]+);base64,(.+)$`)

// assetKindPattern constrains the caller-supplied asset kind, which becomes
// the filename prefix.
var assetKindPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// filenamePattern is the only shape Remove accepts: a constrained-charset
// base name, a single dot, and an extension. Anything else (separators,
// parent-dir sequences, extra dots) is rejected before any file-system call.
var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9]+$`)

// randomNameBytes is the entropy of the random filename component. 16 bytes
// (32 hex characters) keeps collisions and enumeration impractical.
const randomNameBytes = 16

// Result describes a stored upload. Filename is echoed to clients so they
// can request deletion later; Path is the public URL of the asset.
type Result struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// Service writes and removes uploaded assets on local disk.
type Service struct {
	Dir        string // On-disk uploads directory
	PublicPath string // URL prefix for stored files, e.g. "/uploads"
}

// NewService creates a Service rooted at dir, creating the directory if needed.
func NewService(dir, publicPath string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory '%s': %w", dir, err)
	}
	return &Service{Dir: dir, PublicPath: strings.TrimSuffix(publicPath, "/")}, nil
}

// Save decodes a data-URI payload and writes it to disk under a
// collision-resistant random name prefixed with kind, e.g.
// "profile_3f9c...ab.png". Either the file is fully written and the result
// returned, or nothing is left on disk.
func (s *Service) Save(dataURI, kind string) (Result, error) {
	if !assetKindPattern.MatchString(kind) {
		return Result{}, ErrInvalidPayload
	}

	matches := dataURIPattern.FindStringSubmatch(dataURI)
	if matches == nil {
		return Result{}, ErrInvalidPayload
	}
	mimeType := matches[1]

	data, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return Result{}, ErrInvalidPayload
	}

	// Extension comes from the declared mime subtype ("image/png" -> "png").
	ext := mimeType[strings.Index(mimeType, "/")+1:]

	suffix := make([]byte, randomNameBytes)
	if _, err := rand.Read(suffix); err != nil {
		return Result{}, fmt.Errorf("failed to generate filename: %w", err)
	}
	filename := fmt.Sprintf("%s_%s.%s", kind, hex.EncodeToString(suffix), ext)
	filePath := filepath.Join(s.Dir, filename)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		// A failed write must not leave partial state behind.
		_ = os.Remove(filePath)
		log.Printf("ERROR: Failed to write upload '%s': %v", filePath, err)
		return Result{}, fmt.Errorf("failed to store upload: %w", err)
	}

	log.Printf("INFO: Stored upload %s (%s, %d bytes)", filename, mimeType, len(data))
	return Result{
		Path:     s.PublicPath + "/" + filename,
		Filename: filename,
		MimeType: mimeType,
	}, nil
}

// Remove deletes a previously uploaded file by name. The filename is
// validated strictly before the path is even resolved; this is the defense
// against path traversal, not optional hardening.
func (s *Service) Remove(filename string) error {
	if filename == "" || strings.Contains(filename, "..") ||
		strings.ContainsAny(filename, `/\`) || !filenamePattern.MatchString(filename) {
		return ErrInvalidFilename
	}

	filePath := filepath.Join(s.Dir, filename)
	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to stat '%s': %w", filename, err)
	}

	if err := os.Remove(filePath); err != nil {
		log.Printf("ERROR: Failed to delete upload '%s': %v", filePath, err)
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	log.Printf("INFO: Deleted upload %s", filename)
	return nil
}
