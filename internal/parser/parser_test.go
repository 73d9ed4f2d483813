package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	// #nosec G304 -- test reads from the package testdata directory.
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseListing(t *testing.T) {
	t.Parallel()

	listing, err := ParseListing(readFixture(t, "page1.html"), "http://quotes.toscrape.com/")
	require.NoError(t, err)
	require.Len(t, listing.Stubs, 2)

	first := listing.Stubs[0]
	assert.Equal(t, "Albert Einstein", first.Author)
	assert.Equal(t,
		"The world as we have created it is a process of our thinking. It cannot be changed without changing our thinking.",
		first.Quote,
	)
	assert.Equal(t, []string{"change", "deep-thoughts", "thinking", "world"}, first.Tags)
	assert.Equal(t, "http://quotes.toscrape.com/author/Albert-Einstein", first.AboutURL)

	second := listing.Stubs[1]
	assert.Equal(t, "Steve Martin", second.Author)
	assert.Empty(t, second.AboutURL)
	assert.Empty(t, second.Tags)

	assert.Equal(t, "http://quotes.toscrape.com/page/2/", listing.NextURL)
}

func TestParseListingLastPage(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
<div class="quote"><span class="text" itemprop="text">Only one.</span>
<span>by <small class="author" itemprop="author">Someone</small></span></div>
<ul class="pager"><li class="previous"><a href="/page/9/">Previous</a></li></ul>
</body></html>`)
	listing, err := ParseListing(body, "http://quotes.toscrape.com/page/10/")
	require.NoError(t, err)
	require.Len(t, listing.Stubs, 1)
	assert.Empty(t, listing.NextURL)
	assert.Equal(t, "Only one.", listing.Stubs[0].Quote)
}

func TestParseListingMissingFieldsDegradeToEmpty(t *testing.T) {
	t.Parallel()

	listing, err := ParseListing([]byte(`<div class="quote"></div>`), "http://example.com/")
	require.NoError(t, err)
	require.Len(t, listing.Stubs, 1)
	assert.Empty(t, listing.Stubs[0].Quote)
	assert.Empty(t, listing.Stubs[0].Author)
}

func TestParseListingRejectsBadPageURL(t *testing.T) {
	t.Parallel()

	_, err := ParseListing([]byte("<html></html>"), "http://%zz")
	require.Error(t, err)
}

func TestParseAuthor(t *testing.T) {
	t.Parallel()

	author, err := ParseAuthor(readFixture(t, "author.html"))
	require.NoError(t, err)
	assert.Equal(t, "1879-03-14", author.DOB)
	assert.Equal(t, "Ulm, Germany", author.PlaceOfBirth)
	assert.Equal(t,
		"In 1879, Albert Einstein was born in Ulm, Germany. He completed his Ph.D. at the University of Zurich by 1909.",
		author.Bio,
	)
}

func TestParseAuthorEmptyPage(t *testing.T) {
	t.Parallel()

	author, err := ParseAuthor([]byte("<html><body></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, author.DOB)
	assert.Empty(t, author.PlaceOfBirth)
	assert.Empty(t, author.Bio)
}
