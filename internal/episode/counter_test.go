package episode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listHTML = `<ul id="_listUl">
	<li class="_episodeItem" data-episode-no="42"><span class="tx">#42</span></li>
	<li class="_episodeItem" data-episode-no="41"><span class="tx">#41</span></li>
	<li class="_episodeItem" data-episode-no="40"><span class="tx">#40</span></li>
</ul>`

func count(t *testing.T, c Counter, html string) (int, error) {
	t.Helper()
	return c.Count(context.Background(), Page{URL: "https://example.test/list?title_no=1", HTML: []byte(html)})
}

func TestAttributeCounter(t *testing.T) {
	t.Run("reads newest item attribute", func(t *testing.T) {
		n, err := count(t, AttributeCounter{}, listHTML)
		require.NoError(t, err)
		assert.Equal(t, 42, n)
	})

	t.Run("no episode list is zero, not an error", func(t *testing.T) {
		n, err := count(t, AttributeCounter{}, `<div class="detail_header"></div>`)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("malformed attribute is an error", func(t *testing.T) {
		n, err := count(t, AttributeCounter{}, `<ul id="_listUl"><li class="_episodeItem" data-episode-no="abc"></li></ul>`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnparseable))
		assert.Equal(t, 0, n)
	})

	t.Run("missing attribute falls back to counting items", func(t *testing.T) {
		n, err := count(t, AttributeCounter{}, `<ul id="_listUl"><li>a</li><li>b</li></ul>`)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("empty list is zero", func(t *testing.T) {
		n, err := count(t, AttributeCounter{}, `<ul id="_listUl"></ul>`)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestItemCounter(t *testing.T) {
	n, err := count(t, ItemCounter{}, listHTML)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = count(t, ItemCounter{}, `<p>no list</p>`)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLabelCounter(t *testing.T) {
	n, err := count(t, LabelCounter{}, `<ul id="_listUl">
		<li><span class="tx">#7</span></li>
		<li><span class="tx">#12</span></li>
		<li><span class="tx">特別篇</span></li>
		<li><span class="tx">#x</span></li>
	</ul>`)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = count(t, LabelCounter{}, `<p>no list</p>`)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{"": "attribute", "attribute": "attribute", "items": "items", "LABEL": "label"} {
		c, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, want, c.Name())
	}

	_, err := New("browser")
	assert.Error(t, err)
}
