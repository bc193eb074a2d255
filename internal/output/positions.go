package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/careers-finder/internal/positions"
)

// PositionsHeader is the header row of a positions file.
var PositionsHeader = []string{"title", "type", "location"}

var unsafeFilenameChars = regexp.MustCompile(`[/\\?%*:|"<>]`)

// Writer stores positions as one CSV file per company under
// <dir>/positions.
type Writer struct {
	dir      string
	override bool
	now      func() time.Time
}

// NewWriter creates a Writer rooted at dir. With override set, an existing
// file is renamed aside instead of blocking the write.
func NewWriter(dir string, override bool) *Writer {
	return &Writer{dir: dir, override: override, now: time.Now}
}

// Path returns the positions file for company.
func (w *Writer) Path(company string) string {
	return filepath.Join(w.dir, "positions", EscapeFilename(company)+".csv")
}

// Exists reports whether company already has a positions file.
func (w *Writer) Exists(company string) bool {
	_, err := os.Stat(w.Path(company))
	return err == nil
}

// Write persists list for company and returns the file path. An empty
// list still produces a header-only file, recording that the company was
// processed. When a file exists and override is off, nothing is written
// and written is false.
func (w *Writer) Write(company string, list []positions.Position) (path string, written bool, err error) {
	path = w.Path(company)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create positions dir: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if !w.override {
			return path, false, nil
		}
		ext := filepath.Ext(path)
		aside := strings.TrimSuffix(path, ext) + "_" + w.now().Format("20060102_150405") + ext
		if err := os.Rename(path, aside); err != nil {
			return "", false, fmt.Errorf("failed to move previous positions file: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to create positions file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(PositionsHeader); err != nil {
		return "", false, err
	}
	for _, p := range list {
		if p.Title == "" {
			continue
		}
		if err := cw.Write([]string{p.Title, orNA(p.Type), orNA(p.Location)}); err != nil {
			return "", false, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", false, fmt.Errorf("failed to write positions file: %w", err)
	}
	return path, true, nil
}

// EscapeFilename makes a company name safe as a file name: percent-encode
// everything but unreserved characters and '/', turn the remaining unsafe
// characters (including '%') into '_', replace a leading dot or space and
// trim trailing dots and spaces.
func EscapeFilename(name string) string {
	escaped := unsafeFilenameChars.ReplaceAllString(quote(name), "_")
	if escaped != "" && (escaped[0] == '.' || escaped[0] == ' ') {
		escaped = "_" + escaped[1:]
	}
	return strings.TrimRight(escaped, ". ")
}

// quote percent-encodes every byte outside [A-Za-z0-9_.~/-].
func quote(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '.', c == '-', c == '~', c == '/':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&15])
		}
	}
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return positions.NotAvailable
	}
	return s
}
