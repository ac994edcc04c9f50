package assets

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrs_SetReplacesInPlace(t *testing.T) {
	var attrs Attrs
	attrs.Set("key", "a")
	attrs.Set("type", "text/css")
	attrs.Set("key", "plugin-0")

	want := Attrs{{Name: "key", Value: "plugin-0"}, {Name: "type", Value: "text/css"}}
	if diff := cmp.Diff(want, attrs); diff != "" {
		t.Errorf("Attrs mismatch (-want +got):\n%s", diff)
	}

	v, ok := attrs.Get("type")
	assert.True(t, ok)
	assert.Equal(t, "text/css", v)

	_, ok = attrs.Get("src")
	assert.False(t, ok)
}

func TestAttrs_JSONKeepsOrder(t *testing.T) {
	a := Asset{Tag: "script"}
	a.Attrs.Set("key", "vite-client")
	a.Attrs.Set("type", "module")
	a.Attrs.Set("src", "/_build/@vite/client")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"tag":"script","attrs":{"key":"vite-client","type":"module","src":"/_build/@vite/client"}}`,
		string(data))
	assert.Contains(t, string(data), `"key":"vite-client","type":"module","src"`)

	var back Asset
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(a, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAsset_HTML(t *testing.T) {
	tests := []struct {
		name  string
		asset Asset
		want  string
	}{
		{
			name: "style skips key",
			asset: Asset{
				Tag: "style",
				Attrs: Attrs{
					{Name: "type", Value: "text/css"},
					{Name: "key", Value: "/app/a.css"},
					{Name: "data-vite-dev-id", Value: "/app/a.css"},
				},
				Children: "body{color:red}",
			},
			want: `<style type="text/css" data-vite-dev-id="/app/a.css">body{color:red}</style>`,
		},
		{
			name:  "void link",
			asset: Asset{Tag: "link", Attrs: Attrs{{Name: "rel", Value: "stylesheet"}, {Name: "href", Value: "/a.css"}}},
			want:  `<link rel="stylesheet" href="/a.css">`,
		},
		{
			name:  "escaped value",
			asset: Asset{Tag: "meta", Attrs: Attrs{{Name: "content", Value: `a"b`}}},
			want:  `<meta content="a&#34;b">`,
		},
		{
			name:  "no tag",
			asset: Asset{Attrs: Attrs{{Name: "key", Value: "x"}}},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.asset.HTML())
		})
	}
}

func TestInjectHead(t *testing.T) {
	list := []Asset{{Tag: "script", Attrs: Attrs{{Name: "src", Value: "/c.js"}}}}
	tag := `<script src="/c.js"></script>` + "\n"

	assert.Equal(t, "<html><head>"+tag+"</head><body></body></html>",
		InjectHead("<html><head></head><body></body></html>", list))
	assert.Equal(t, "<body>"+tag+"</body>", InjectHead("<body></body>", list))
	assert.Equal(t, "plain"+tag, InjectHead("plain", list))
	assert.Equal(t, "<head></head>", InjectHead("<head></head>", nil))
}

func TestCompact(t *testing.T) {
	in := []Asset{{}, {Tag: "style"}, {}, {Tag: "script"}}
	out := Compact(in)
	require.Len(t, out, 2)
	assert.Equal(t, "style", out[0].Tag)
	assert.Equal(t, "script", out[1].Tag)
	assert.Len(t, in, 4)
}
