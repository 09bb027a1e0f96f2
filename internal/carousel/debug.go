package carousel

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints the nodes matching selector, one block per match.
// It backs the command's "-selector" mode, used to re-locate carousel class
// constants after Google reshuffles the page markup.
//
// Each match prints an "n: tag#id .class .class" header followed by either
// the trimmed node text (textOnly) or the outer HTML. max caps the number of
// matches printed; max <= 0 prints all of them.
func DebugPrintSelector(w io.Writer, markup, selector string, max int, textOnly bool) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if max > 0 && i >= max {
			return false
		}

		header := fmt.Sprintf("%d: %s", i, goquery.NodeName(s))
		if id, ok := s.Attr("id"); ok && id != "" {
			header += "#" + id
		}
		if class, ok := s.Attr("class"); ok && class != "" {
			header += " ." + strings.Join(strings.Fields(class), " .")
		}
		fmt.Fprintln(w, header)

		if textOnly {
			fmt.Fprintln(w, strings.TrimSpace(s.Text()))
		} else {
			out, err := goquery.OuterHtml(s)
			if err != nil {
				out, _ = s.Html()
			}
			fmt.Fprintln(w, out)
		}
		fmt.Fprintln(w)
		return true
	})
	return nil
}
