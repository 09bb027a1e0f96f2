package carousel

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// PageResult pairs one page file with its extracted carousels. The directory
// streamer emits one of these per file.
type PageResult struct {
	SourceFile string            `json:"source_file"`
	Carousels  map[string][]Item `json:"carousels"`
}

// StreamFromDir extracts every page file under dir and streams the results to
// w as a single JSON array, one PageResult per file.
//
// Behavior:
//   - stable ordering by filename
//   - subdirectories and unreadable files are skipped
//   - a page with no carousel items still emits an entry (all lists empty),
//     since an empty result is a valid answer, not a failure
func StreamFromDir(w io.Writer, dir string, rules []Rule, enc *json.Encoder) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	if _, err := io.WriteString(w, "["); err != nil {
		return fmt.Errorf("write [: %w", err)
	}

	first := true
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}

		h := NewHandler(string(b), rules)
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write comma: %w", err)
			}
		}
		first = false
		if err := enc.Encode(PageResult{SourceFile: e.Name(), Carousels: h.ToObj()}); err != nil {
			return fmt.Errorf("encode page: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return fmt.Errorf("write ]: %w", err)
	}
	return nil
}
