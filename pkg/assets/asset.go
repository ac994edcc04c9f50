// Package assets models the HTML fragments a page needs in its head
// (stylesheets, scripts, plugin markup) and renders them.
//
// An Asset is a tag name, an ordered attribute list and optional text
// children. Attribute order is preserved through JSON so that manifests
// served over HTTP keep the order the resolver produced:
//
//	a := assets.Asset{Tag: "script"}
//	a.Attrs.Set("type", "module")
//	a.Attrs.Set("src", "/_build/@vite/client")
//	a.HTML() // <script type="module" src="/_build/@vite/client"></script>
package assets

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"
)

// KeyAttr is the attribute that identifies an asset within a list.
const KeyAttr = "key"

// Attr is a single HTML attribute.
type Attr struct {
	Name  string
	Value string
}

// Attrs is an ordered attribute list. Names are unique.
type Attrs []Attr

// Get returns the value of the named attribute.
func (a Attrs) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Set replaces the named attribute in place, or appends it.
func (a *Attrs) Set(name, value string) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Name: name, Value: value})
}

// Clone returns a copy of the list.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	return append(Attrs(nil), a...)
}

// MarshalJSON encodes the list as a JSON object in list order.
func (a Attrs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the order of its keys.
func (a *Attrs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var out Attrs
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out.Set(name, value)
	}
	*a = out
	return nil
}

// Asset is one HTML fragment destined for the document head.
type Asset struct {
	Tag      string `json:"tag"`
	Attrs    Attrs  `json:"attrs"`
	Children string `json:"children,omitempty"`
}

// Key returns the asset's key attribute, or "".
func (a Asset) Key() string {
	k, _ := a.Attrs.Get(KeyAttr)
	return k
}

// IsZero reports whether the asset carries nothing to render.
func (a Asset) IsZero() bool {
	return a.Tag == "" && len(a.Attrs) == 0 && a.Children == ""
}

// HTML renders the asset as markup. The key attribute is list bookkeeping
// and is not rendered.
func (a Asset) HTML() string {
	if a.Tag == "" {
		return ""
	}

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(a.Tag)
	for _, attr := range a.Attrs {
		if attr.Name == KeyAttr {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(attr.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(attr.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	if isVoid(a.Tag) {
		return b.String()
	}

	// Style and script bodies are raw text.
	b.WriteString(a.Children)
	b.WriteString("</")
	b.WriteString(a.Tag)
	b.WriteByte('>')
	return b.String()
}

var voidTags = map[string]bool{
	"base": true, "link": true, "meta": true,
	"br": true, "hr": true, "img": true, "input": true,
}

func isVoid(tag string) bool {
	return voidTags[strings.ToLower(tag)]
}
