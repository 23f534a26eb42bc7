package sources_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/docscraper/internal/sources"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	src := sources.SearchSource{Name: "docs", BaseURL: "https://docs.test/", Templates: []string{"?s={keyword}"}}

	assert.Equal(t, "https://docs.test/?s=SQL+Tutorial", src.SearchURL("?s={keyword}", "SQL Tutorial"))
	assert.Equal(t, "https://docs.test//search?q=a%26b", src.SearchURL("/search?q={keyword}", "a&b"))
}

func TestNewRegistry_Valid(t *testing.T) {
	t.Parallel()

	reg, err := sources.NewRegistry(
		[]sources.SearchSource{
			{Name: "one", BaseURL: "https://one.test/", Templates: []string{"?s={keyword}"}, Enabled: true},
			{Name: "two", BaseURL: "https://two.test/", Templates: []string{"?q={keyword}"}, Enabled: false},
		},
		[]sources.DirectSource{{Name: "page", URL: "https://page.test/docs", Enabled: true}},
	)
	require.NoError(t, err)

	require.Len(t, reg.Search(), 1)
	assert.Equal(t, "one", reg.Search()[0].Name)
	require.Len(t, reg.Direct(), 1)
	assert.Len(t, reg.All(), 3)
	assert.Equal(t, sources.KindDirect, reg.All()[2].Kind())
}

func TestNewRegistry_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	_, err := sources.NewRegistry(
		[]sources.SearchSource{
			{Name: "", BaseURL: "https://one.test/", Templates: []string{"?s={keyword}"}},
			{Name: "dup", BaseURL: "ftp://two.test/", Templates: []string{"?s=static"}},
		},
		[]sources.DirectSource{{Name: "dup", URL: "not a url"}},
	)
	require.Error(t, err)

	require.ErrorIs(t, err, sources.ErrMissingRequiredField)
	require.ErrorIs(t, err, sources.ErrInvalidURL)
	require.ErrorIs(t, err, sources.ErrMissingPlaceholder)
	require.ErrorIs(t, err, sources.ErrDuplicateName)
}

func TestFileRegistry_EnabledDefaultsToTrue(t *testing.T) {
	t.Parallel()

	off := false
	file := sources.File{
		Search: []sources.SearchSpec{{Name: "s", BaseURL: "https://s.test/", Templates: []string{"?s={keyword}"}}},
		Direct: []sources.DirectSpec{{Name: "d", URL: "https://d.test/", Enabled: &off}},
	}

	reg, err := file.Registry()
	require.NoError(t, err)
	assert.Len(t, reg.Search(), 1)
	assert.Empty(t, reg.Direct())
}

func TestDecode_FromSettingsMap(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"search": []any{
			map[string]any{"name": "s", "base_url": "https://s.test/", "templates": "?s={keyword},/search?q={keyword}", "enabled": "true"},
		},
		"direct": []any{map[string]any{"name": "d", "url": "https://d.test/"}},
	}

	f, err := sources.Decode(raw)
	require.NoError(t, err)
	require.Len(t, f.Search, 1)
	assert.Equal(t, []string{"?s={keyword}", "/search?q={keyword}"}, f.Search[0].Templates)
	require.NotNil(t, f.Search[0].Enabled)
	assert.True(t, *f.Search[0].Enabled)
	assert.Nil(t, f.Direct[0].Enabled)
}

func TestLoadFile_WriteFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	in := sources.File{
		Search: []sources.SearchSpec{{Name: "s", BaseURL: "https://s.test/", Templates: []string{"?s={keyword}"}}},
		Direct: []sources.DirectSpec{{Name: "d", URL: "https://d.test/page"}},
	}
	require.NoError(t, sources.WriteFile(path, in))

	out, err := sources.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: {}\n"), 0o600))

	_, err := sources.LoadFile(path)
	require.ErrorIs(t, err, sources.ErrNoSources)
}

func TestImportXLSX(t *testing.T) {
	t.Parallel()

	book := excelize.NewFile()
	rows := [][]string{
		sources.ImportHeaders,
		{"search", "PDF Site", "https://pdf.test/", "?s={keyword} | /search?q={keyword}", ""},
		{"direct", "Subjects", "https://books.test/subjects", "", "false"},
		{"", "", "", "", ""},
		{"feed", "Bad kind", "https://x.test/", "", ""},
		{"direct", "", "https://x.test/", "", ""},
		{"search", "No templates", "https://x.test/", "", ""},
	}
	for r, row := range rows {
		for c, v := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, book.SetCellValue("Sheet1", name, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	file, rowErrs, err := sources.ImportXLSX(&buf)
	require.NoError(t, err)

	require.Len(t, file.Search, 1)
	assert.Equal(t, []string{"?s={keyword}", "/search?q={keyword}"}, file.Search[0].Templates)
	require.Len(t, file.Direct, 1)
	require.NotNil(t, file.Direct[0].Enabled)
	assert.False(t, *file.Direct[0].Enabled)

	require.Len(t, rowErrs, 3)
	assert.Equal(t, 5, rowErrs[0].Row)
	assert.Equal(t, "name is required", rowErrs[1].Message)
	assert.Equal(t, 7, rowErrs[2].Row)
}

func TestExportXLSX_ReimportsSameSources(t *testing.T) {
	t.Parallel()

	on := true
	in := sources.File{
		Search: []sources.SearchSpec{{Name: "s", BaseURL: "https://s.test/", Templates: []string{"?s={keyword}"}, Enabled: &on}},
		Direct: []sources.DirectSpec{{Name: "d", URL: "https://d.test/", Enabled: &on}},
	}

	var buf bytes.Buffer
	require.NoError(t, sources.ExportXLSX(&buf, in))

	out, rowErrs, err := sources.ImportXLSX(&buf)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Equal(t, in, out)
}
