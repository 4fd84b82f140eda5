package digest

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherSplitIndependence(t *testing.T) {
	data := make([]byte, 3*1024*1024+17)
	_, err := rand.Read(data)
	require.NoError(t, err)

	want := Sum(data)

	for _, step := range []int{1, 7, 4096, 1 << 20, len(data)} {
		h := New()
		for off := 0; off < len(data); off += step {
			end := min(off+step, len(data))
			_, _ = h.Write(data[off:end])
		}
		assert.Equal(t, want, h.Sum(), "step %d", step)
	}
}

func TestHasherEmpty(t *testing.T) {
	assert.Equal(t, Sum(nil), New().Sum())
	assert.False(t, Sum(nil).IsZero())
}

func TestHasherReset(t *testing.T) {
	h := New()
	_, _ = h.Write([]byte("first"))
	h.Reset()
	_, _ = h.Write([]byte("second"))
	assert.Equal(t, Sum([]byte("second")), h.Sum())
}

func TestSumReader(t *testing.T) {
	data := []byte(strings.Repeat("dossier", 1000))
	d, n, err := SumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, Sum(data), d)
}

func TestOrderSensitive(t *testing.T) {
	assert.NotEqual(t, Sum([]byte("ab")), Sum([]byte("ba")))
}

func TestParse(t *testing.T) {
	d := Sum([]byte("hello"))

	encoded := d.String()
	assert.NotContains(t, encoded, "=")
	assert.Len(t, encoded, 43)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "raw url", input: encoded},
		{name: "padded url", input: base64.URLEncoding.EncodeToString(d[:])},
		{name: "standard", input: base64.StdEncoding.EncodeToString(d[:])},
		{name: "garbage", input: "not a digest!", wantErr: true},
		{name: "short", input: base64.RawURLEncoding.EncodeToString(d[:10]), wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDigest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, d, got)
		})
	}
}

func TestETag(t *testing.T) {
	d := Sum([]byte("etag"))
	assert.Equal(t, `"`+d.String()+`"`, d.ETag())
}

func TestParseETags(t *testing.T) {
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))
	c := Sum([]byte("c"))

	tests := []struct {
		name   string
		header string
		match  []Digest
		miss   []Digest
	}{
		{name: "single", header: a.ETag(), match: []Digest{a}, miss: []Digest{b}},
		{name: "list", header: a.ETag() + ", " + b.ETag(), match: []Digest{a, b}, miss: []Digest{c}},
		{name: "weak", header: "W/" + c.ETag(), match: []Digest{c}},
		{name: "garbage entry ignored", header: `"zzz", ` + b.ETag(), match: []Digest{b}, miss: []Digest{a}},
		{name: "unquoted field", header: a.ETag() + ", *", miss: []Digest{a}},
		{name: "empty", header: "", miss: []Digest{a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range tt.match {
				assert.True(t, MatchesETags(tt.header, d))
			}
			for _, d := range tt.miss {
				assert.False(t, MatchesETags(tt.header, d))
			}
		})
	}
}

func TestTextMarshalling(t *testing.T) {
	d := Sum([]byte("text"))
	text, err := d.MarshalText()
	require.NoError(t, err)

	var out Digest
	require.NoError(t, out.UnmarshalText(text))
	assert.Equal(t, d, out)

	assert.Error(t, out.UnmarshalText([]byte("bad")))
}
