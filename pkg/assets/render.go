package assets

import "strings"

// RenderAll renders every asset in order, one per line.
func RenderAll(list []Asset) string {
	var b strings.Builder
	for _, a := range list {
		s := a.HTML()
		if s == "" {
			continue
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.String()
}

// InjectHead inserts the rendered assets before </head>. Documents without a
// head get them before </body>, then </html>, then appended.
func InjectHead(doc string, list []Asset) string {
	markup := RenderAll(list)
	if markup == "" {
		return doc
	}

	for _, marker := range []string{"</head>", "</body>", "</html>"} {
		if idx := strings.LastIndex(doc, marker); idx != -1 {
			return doc[:idx] + markup + doc[idx:]
		}
	}
	return doc + markup
}

// Compact drops zero assets, keeping order.
func Compact(list []Asset) []Asset {
	out := list[:0:0]
	for _, a := range list {
		if !a.IsZero() {
			out = append(out, a)
		}
	}
	return out
}
