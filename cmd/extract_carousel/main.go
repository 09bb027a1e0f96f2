// Command extract-carousel reads Google search result HTML (from stdin, a
// file, or a directory of saved pages) and prints the carousel items as JSON.
//
// Usage (stdin):
//
//	cat page.html | extract-carousel
//
// Usage (single file, pretty-printed):
//
//	extract-carousel -in page.html -indent 2
//
// Usage (directory mode):
//
//	extract-carousel -dir ./pages -out results.json
//
// Restrict the built-in categories:
//
//	extract-carousel -in page.html -categories artworks,songs
//
// Debug (inspect selector matches when Google shuffles class names):
//
//	cat page.html | extract-carousel -selector "div.Cz5hV" -max 5 -text
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"serpcarousel/internal/carousel"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is split out from main so we can unit test the command without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("extract-carousel", flag.ContinueOnError)
	fs.SetOutput(stderr)

	inFlag := fs.String("in", "", "Path to a saved results page (default: stdin)")
	dirFlag := fs.String("dir", "", "Directory of saved pages (one JSON array entry per file)")
	outFlag := fs.String("out", "", "Write JSON here instead of stdout")
	rulesFlag := fs.String("rules", "", "Path to a categories JSON file replacing the built-in rules")
	categoriesFlag := fs.String("categories", "", "Comma-separated subset of the built-in categories to extract")
	indent := fs.Int("indent", 0, "Pretty-print JSON with this many spaces (0 = compact)")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for (not JSON)")
	maxMatches := fs.Int("max", 10, "Debug: cap on -selector matches printed")
	onlyText := fs.Bool("text", false, "Debug: print text content for -selector matches")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *inFlag != "" && *dirFlag != "" {
		fmt.Fprintf(stderr, "-in and -dir are mutually exclusive\n")
		return 2
	}
	if *indent < 0 {
		fmt.Fprintf(stderr, "-indent must not be negative\n")
		return 2
	}

	// Debug selector mode reads a single page and skips extraction entirely.
	if *debugSelector != "" {
		if *dirFlag != "" {
			fmt.Fprintf(stderr, "-selector reads a single page; drop -dir\n")
			return 2
		}
		markup, err := carousel.LoadInput(carousel.Input{Path: *inFlag, Stdin: stdin})
		if err != nil {
			fmt.Fprintf(stderr, "load page: %v\n", err)
			return 1
		}
		if err := carousel.DebugPrintSelector(stdout, markup, *debugSelector, *maxMatches, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	rules, err := resolveRules(*rulesFlag, *categoriesFlag)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	var out io.Writer = stdout
	var outFile *os.File
	if *outFlag != "" {
		f, err := os.Create(*outFlag)
		if err != nil {
			fmt.Fprintf(stderr, "create output: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		outFile = f
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if *indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", *indent))
	}

	// Directory mode: stream output as a single JSON array.
	if *dirFlag != "" {
		if err := carousel.StreamFromDir(out, *dirFlag, rules, enc); err != nil {
			fmt.Fprintf(stderr, "dir extract: %v\n", err)
			return 1
		}
		return closeOut(stderr, outFile)
	}

	// Single input mode: stdin or -in.
	markup, err := carousel.LoadInput(carousel.Input{Path: *inFlag, Stdin: stdin})
	if err != nil {
		fmt.Fprintf(stderr, "load page: %v\n", err)
		return 1
	}

	h := carousel.NewHandler(markup, rules)
	if err := enc.Encode(h.ToObj()); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}
	return closeOut(stderr, outFile)
}

// closeOut closes the -out file when one is open, surfacing late write
// errors. Stdout needs no close.
func closeOut(stderr io.Writer, f *os.File) int {
	if f == nil {
		return 0
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(stderr, "close output: %v\n", err)
		return 1
	}
	return 0
}

// resolveRules picks the category set: a rules file, a -categories subset of
// the built-in rules, or the built-in rules as-is.
func resolveRules(rulesPath, categoriesCSV string) ([]carousel.Rule, error) {
	if rulesPath != "" && categoriesCSV != "" {
		return nil, fmt.Errorf("-rules and -categories are mutually exclusive")
	}
	if rulesPath != "" {
		return carousel.LoadRulesFile(rulesPath)
	}

	defaults := carousel.DefaultRules()
	if categoriesCSV == "" {
		return defaults, nil
	}

	byName := make(map[string]carousel.Rule, len(defaults))
	known := make([]string, 0, len(defaults))
	for _, r := range defaults {
		byName[r.Name] = r
		known = append(known, r.Name)
	}

	var rules []carousel.Rule
	for _, name := range strings.Split(categoriesCSV, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown category %q (have %s)", name, strings.Join(known, ", "))
		}
		rules = append(rules, r)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("-categories selected nothing")
	}
	return rules, nil
}
