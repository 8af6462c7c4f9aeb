package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnippet(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o640))
}

func TestLookupPicksBestOverlap(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "tea.txt", "Green tea is brewed below boiling temperature for two minutes.")
	writeSnippet(t, dir, "coffee.txt", "Espresso coffee is brewed under pressure with finely ground beans.")

	corpus, err := LoadCorpus(dir)
	require.NoError(t, err)
	require.Equal(t, 2, corpus.Size())

	snippet := corpus.Lookup("how is espresso coffee brewed")
	require.NotNil(t, snippet)
	assert.Equal(t, "coffee.txt", snippet.Name)
}

func TestLookupBelowMinimumOverlap(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "tea.txt", "Green tea is brewed below boiling temperature.")

	corpus, err := LoadCorpus(dir)
	require.NoError(t, err)

	assert.Nil(t, corpus.Lookup("tell about painting"))
	assert.Nil(t, corpus.Lookup(""))
}

func TestMissingDirectoryYieldsEmptyCorpus(t *testing.T) {
	corpus, err := LoadCorpus(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, 0, corpus.Size())
	assert.Nil(t, corpus.Lookup("anything at all"))
}

func TestNonTextFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	writeSnippet(t, dir, "notes.txt", "Some reference notes about travel plans.")
	writeSnippet(t, dir, "image.png", "binary-ish")

	corpus, err := LoadCorpus(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.Size())
}
