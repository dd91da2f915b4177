package tracing

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
)

const (
	scriptOpen  = "<script>window.__DEBUG__ = "
	scriptClose = "</script>"
	bodyClose   = "</body>"
)

// InjectResult tells what Inject did to a document.
type InjectResult int

const (
	// Skipped: the document has no closing body tag and was left as is.
	Skipped InjectResult = iota
	// Injected: the fragment was inserted before the closing body tag.
	Injected
	// Replaced: an earlier fragment was replaced in place.
	Replaced
)

func (r InjectResult) String() string {
	switch r {
	case Injected:
		return "injected"
	case Replaced:
		return "replaced"
	default:
		return "skipped"
	}
}

// IsDocument reports whether contentType declares a full markup document.
func IsDocument(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// ScriptFragment renders t as a script element assigning window.__DEBUG__.
func ScriptFragment(t *Trace) ([]byte, error) {
	payload, err := t.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode trace: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(scriptOpen) + len(payload) + len(scriptClose) + 1)
	buf.WriteString(scriptOpen)
	buf.Write(payload)
	buf.WriteString(";")
	buf.WriteString(scriptClose)
	return buf.Bytes(), nil
}

// Inject embeds t in doc. An existing window.__DEBUG__ fragment is replaced
// so a document never carries more than one; otherwise the fragment goes
// right before the first closing body tag. A document without one is
// returned unchanged. doc is not modified.
func Inject(doc []byte, t *Trace) ([]byte, InjectResult, error) {
	fragment, err := ScriptFragment(t)
	if err != nil {
		return doc, Skipped, err
	}

	if start, end, ok := findFragment(doc, 0); ok {
		out := make([]byte, 0, len(doc)-(end-start)+len(fragment))
		out = append(out, doc[:start]...)
		out = append(out, fragment...)
		out = append(out, stripFragments(doc[end:])...)
		return out, Replaced, nil
	}

	i := indexFold(doc, bodyClose)
	if i < 0 {
		return doc, Skipped, nil
	}
	out := make([]byte, 0, len(doc)+len(fragment))
	out = append(out, doc[:i]...)
	out = append(out, fragment...)
	out = append(out, doc[i:]...)
	return out, Injected, nil
}

// findFragment locates the first injected fragment at or after from,
// returning its bounds including the closing script tag.
func findFragment(doc []byte, from int) (int, int, bool) {
	i := bytes.Index(doc[from:], []byte(scriptOpen))
	if i < 0 {
		return 0, 0, false
	}
	start := from + i
	j := indexFold(doc[start+len(scriptOpen):], scriptClose)
	if j < 0 {
		return 0, 0, false
	}
	return start, start + len(scriptOpen) + j + len(scriptClose), true
}

func stripFragments(doc []byte) []byte {
	start, end, ok := findFragment(doc, 0)
	if !ok {
		return doc
	}
	var out []byte
	for ok {
		out = append(out, doc[:start]...)
		doc = doc[end:]
		start, end, ok = findFragment(doc, 0)
	}
	return append(out, doc...)
}

// indexFold is bytes.Index with ASCII case folding. Byte offsets stay
// valid for the original slice, unlike searching a lowercased copy.
func indexFold(s []byte, sep string) int {
	n := len(sep)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(string(s[i:i+n]), sep) {
			return i
		}
	}
	return -1
}
