package executor

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/contentpipe/internal/ir"
)

// Routine is a deterministic local transformation. It returns the new body.
type Routine func(doc *ir.Document) (string, error)

// DefaultRoutines returns the built-in local routines keyed by name.
func DefaultRoutines() map[string]Routine {
	return map[string]Routine{
		"heading-anchors": HeadingAnchors,
		"image-alt":       ImageAlt,
	}
}

// HeadingAnchors appends an explicit " {#slug}" id to every markdown heading
// that does not carry one. Slugs are unique within the document; headings in
// code blocks are left alone.
func HeadingAnchors(doc *ir.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("heading-anchors requires a document")
	}
	src := []byte(doc.Body)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	type insertion struct {
		at   int
		slug string
	}
	var inserts []insertion
	used := make(map[string]int)

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		title := headingText(h, src)
		if strings.Contains(title, "{#") {
			// already anchored; reserve its id
			if id := existingID(title); id != "" {
				used[id]++
			}
			return ast.WalkSkipChildren, nil
		}
		slug := Slugify(title)
		if n := used[slug]; n > 0 {
			used[slug]++
			slug = slug + "-" + strconv.Itoa(n)
		}
		used[slug]++
		seg := lines.At(lines.Len() - 1)
		at := seg.Stop
		for at > seg.Start && (src[at-1] == ' ' || src[at-1] == '\t') {
			at--
		}
		inserts = append(inserts, insertion{at: at, slug: slug})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(inserts, func(i, j int) bool { return inserts[i].at > inserts[j].at })
	out := doc.Body
	for _, ins := range inserts {
		out = out[:ins.at] + " {#" + ins.slug + "}" + out[ins.at:]
	}
	return out, nil
}

func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

var existingIDPattern = regexp.MustCompile(`\{#([^}\s]+)\}`)

func existingID(title string) string {
	m := existingIDPattern.FindStringSubmatch(title)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, transliterates accented letters to their base form
// and joins alphanumeric runs with "-". It never returns "".
func Slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "section"
	}
	return b.String()
}

var imgTag = regexp.MustCompile(`(?i)<img\b[^>]*>`)

// ImageAlt fills a missing or blank alt attribute on every <img> tag. The
// text is derived from the image file name, falling back to the title.
func ImageAlt(doc *ir.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("image-alt requires a document")
	}
	var firstErr error
	out := imgTag.ReplaceAllStringFunc(doc.Body, func(tag string) string {
		fixed, err := fillAlt(tag, doc.Title)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return tag
		}
		return fixed
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func fillAlt(tag, title string) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(tag))
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", tag, err)
	}
	img := d.Find("img").First()
	if img.Length() == 0 {
		return tag, nil
	}
	if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		return tag, nil
	}
	src, _ := img.Attr("src")
	alt := altFromSource(src)
	if alt == "" {
		alt = title
	}
	img.SetAttr("alt", alt)
	return goquery.OuterHtml(img)
}

// altFromSource turns "/img/blue-widget_v2.png?x=1" into "blue widget v2".
func altFromSource(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	base := path.Base(src)
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || unicode.IsSpace(r)
	})
	return strings.Join(words, " ")
}
