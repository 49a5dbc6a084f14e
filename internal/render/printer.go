package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
)

// Printer writes human-readable CLI output.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	s      Styles
}

// NewPrinter creates a Printer. styled selects DefaultStyles over
// NoColorStyles.
func NewPrinter(out, errOut io.Writer, styled bool) *Printer {
	s := NoColorStyles()
	if styled {
		s = DefaultStyles()
	}
	return &Printer{out: out, errOut: errOut, s: s}
}

// Auto creates a Printer for stdout/stderr, styled only on a terminal with
// NO_COLOR unset.
func Auto() *Printer {
	return NewPrinter(os.Stdout, os.Stderr, IsTTY(os.Stdout) && !DetectNoColor())
}

// SearchResults prints merged results followed by advisories on stderr.
func (p *Printer) SearchResults(query string, resp *models.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(p.out, "No matches found for '%s'\n", query)
	}
	for _, r := range resp.Results {
		fmt.Fprintln(p.out, p.s.Title.Render(r.Document.Title)+" "+p.s.Label.Render("["+r.Document.Category+"]"))
		if r.Score != nil {
			fmt.Fprintf(p.out, "  %s %s\n",
				p.s.Path.Render(r.Document.Path),
				p.s.Label.Render(fmt.Sprintf("score %.3f", *r.Score)))
		} else {
			fmt.Fprintf(p.out, "  %s\n", p.s.Path.Render(fmt.Sprintf("%s:%d", r.Document.Path, r.Line)))
			fmt.Fprintf(p.out, "  %s\n", p.s.Match.Render(strings.TrimSpace(r.Text)))
		}
	}
	if n := len(resp.Results); n > 0 {
		fmt.Fprintf(p.out, "\n%d result(s)\n", n)
	}
	for _, a := range resp.Advisories {
		p.Warn(fmt.Sprintf("skipped %s: %s", a.Root, a.Message()))
	}
}

// Documents prints a document listing.
func (p *Printer) Documents(entries []docservice.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No documents found.")
		return
	}
	for _, e := range entries {
		tags := ""
		if len(e.Document.Tags) > 0 {
			tags = " " + p.s.Label.Render("["+strings.Join(e.Document.Tags, ", ")+"]")
		}
		fmt.Fprintf(p.out, "%s %s%s\n  %s\n",
			p.s.Label.Render(e.Document.Category+":"),
			p.s.Title.Render(e.Document.Title),
			tags,
			p.s.Path.Render(e.File))
	}
}

// Added confirms a new document.
func (p *Printer) Added(doc *models.Document) {
	fmt.Fprintf(p.out, "%s %s\n  %s\n",
		p.s.Success.Render("Added"),
		p.s.Title.Render(doc.Title),
		p.s.Path.Render(doc.Path))
}

// Built reports an index build.
func (p *Printer) Built(st *index.BuildStats) {
	fmt.Fprintf(p.out, "%s %s: %d documents, %d terms in %s\n",
		p.s.Success.Render("Indexed"),
		p.s.Path.Render(st.Root),
		st.Documents, st.Terms, st.Duration.Round(time.Millisecond))
	for _, path := range st.Skipped {
		p.Warn("could not read " + path)
	}
}

// Status reports whether a root is indexed and current.
func (p *Printer) Status(st *index.Status) {
	switch {
	case !st.Built:
		fmt.Fprintf(p.out, "%s  %s\n", p.s.Path.Render(st.Root), p.s.Warning.Render("not indexed"))
	case st.Stale:
		fmt.Fprintf(p.out, "%s  %s (built %s, %d documents)\n", p.s.Path.Render(st.Root),
			p.s.Warning.Render("stale"), st.Meta.BuiltAt.Local().Format(time.DateTime), st.Meta.DocCount)
	default:
		fmt.Fprintf(p.out, "%s  %s (built %s, %d documents)\n", p.s.Path.Render(st.Root),
			p.s.Success.Render("up to date"), st.Meta.BuiltAt.Local().Format(time.DateTime), st.Meta.DocCount)
	}
}

// Content writes raw document content.
func (p *Printer) Content(s string) {
	fmt.Fprint(p.out, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(p.out)
	}
}

// Info writes a plain line.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.out, msg)
}

// Warn writes a warning to the error stream.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.errOut, p.s.Warning.Render("warning: ")+msg)
}

// Error writes an error to the error stream.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.errOut, p.s.Error.Render("error: ")+err.Error())
}
