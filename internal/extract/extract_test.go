package extract_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/extract"
)

const testPage = `<!DOCTYPE html>
<html><body>
  <a href="/files/intro-sql.pdf">  Intro to
     SQL </a>
  <a href="">empty</a>
  <a>no href</a>
  <a href="   ">blank</a>
  <a href="https://cdn.test/python.pdf"><span>Python</span> <b>Guide</b></a>
  <a href="javascript:void(0)">Download</a>
</body></html>`

func TestLinks(t *testing.T) {
	t.Parallel()

	seq, err := extract.Links([]byte(testPage))
	require.NoError(t, err)

	links := slices.Collect(seq)
	require.Len(t, links, 3)

	assert.Equal(t, extract.Link{Text: "Intro to SQL", Href: "/files/intro-sql.pdf"}, links[0])
	assert.Equal(t, extract.Link{Text: "Python Guide", Href: "https://cdn.test/python.pdf"}, links[1])
	assert.Equal(t, "javascript:void(0)", links[2].Href)
}

func TestLinks_StopsEarly(t *testing.T) {
	t.Parallel()

	seq, err := extract.Links([]byte(testPage))
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestLinks_MalformedHTML(t *testing.T) {
	t.Parallel()

	seq, err := extract.Links([]byte(`<body><a href="a.pdf">First</a><div><span>unclosed <a href=b.pdf>Second</a><table><tr>`))
	require.NoError(t, err)

	links := slices.Collect(seq)
	require.Len(t, links, 2)
	assert.Equal(t, "b.pdf", links[1].Href)
}

func TestLinks_EmptyBody(t *testing.T) {
	t.Parallel()

	seq, err := extract.Links(nil)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	const base = "https://books.test/subjects/databases?page=2"

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"/files/a.pdf", "https://books.test/files/a.pdf", true},
		{"b.pdf", "https://books.test/subjects/b.pdf", true},
		{"//cdn.test/c.pdf#page=3", "https://cdn.test/c.pdf", true},
		{"http://other.test/d.pdf", "http://other.test/d.pdf", true},
		{"javascript:void(0)", "", false},
		{"mailto:a@b.test", "", false},
		{"", "", false},
		{"%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := extract.Resolve(base, tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		assert.Equal(t, tt.want, got, tt.href)
	}
}

func TestResolve_RelativeBase(t *testing.T) {
	t.Parallel()

	_, ok := extract.Resolve("not-absolute", "a.pdf")
	assert.False(t, ok)
}
