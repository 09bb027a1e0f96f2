package carousel

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Input describes where page markup should come from.
type Input struct {
	// Path, if set, names an already-downloaded page file.
	Path string

	// Stdin is used when Path is empty. If nil, stdin reads as empty.
	Stdin io.Reader
}

// LoadInput returns the markup for either a file (when input.Path is set) or
// stdin. The pipeline never fetches pages itself; inputs are saved markup.
func LoadInput(input Input) (string, error) {
	if strings.TrimSpace(input.Path) == "" {
		if input.Stdin == nil {
			return "", nil
		}
		b, err := io.ReadAll(input.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(input.Path)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(b), nil
}
