package dedup_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/docscraper/internal/dedup"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Books.Test:443/a/../files/x.pdf#page=2", "https://books.test/files/x.pdf"},
		{"http://books.test:80/x.pdf", "http://books.test/x.pdf"},
		{"https://books.test:8443/x.pdf", "https://books.test:8443/x.pdf"},
		{"https://books.test/x.pdf?b=2&utm_source=feed&a=1", "https://books.test/x.pdf?a=1&b=2"},
		{"https://books.test/dir/", "https://books.test/dir"},
		{"https://books.test", "https://books.test/"},
	}
	for _, tt := range tests {
		got, err := dedup.Normalize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := dedup.Normalize("/relative.pdf")
	require.Error(t, err)
}

func TestSet_Add(t *testing.T) {
	t.Parallel()

	s := dedup.NewSet()

	assert.True(t, s.Add("https://books.test/x.pdf"))
	assert.False(t, s.Add("https://books.test/x.pdf"))
	assert.False(t, s.Add("https://BOOKS.test/x.pdf#top"))
	assert.True(t, s.Add("https://books.test/y.pdf"))
	assert.True(t, s.Contains("https://books.test:443/y.pdf"))
	assert.Equal(t, 2, s.Len())
}

func TestSet_ConcurrentAddIsExclusive(t *testing.T) {
	t.Parallel()

	s := dedup.NewSet()
	var winners atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("https://books.test/same.pdf") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
