package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaultTemplate(t *testing.T) {
	tpl := Get(DefaultTemplateID)
	assert.Equal(t, DefaultTemplateID, tpl.ID)
	assert.Contains(t, tpl.ComposeFile, "services:")
	assert.NotEmpty(t, tpl.Files)
}

func TestGetUnknownIDFallsBackToDefault(t *testing.T) {
	tpl := Get("does-not-exist")
	assert.Equal(t, DefaultTemplateID, tpl.ID)
}

func TestGetEmptyIDFallsBackToDefault(t *testing.T) {
	tpl := Get("")
	assert.Equal(t, DefaultTemplateID, tpl.ID)
}

func TestTemplateContainsExpectedFiles(t *testing.T) {
	tpl := Get(DefaultTemplateID)
	_, hasPackageJSON := tpl.Files["/package.json"]
	_, hasApp := tpl.Files["/src/App.jsx"]
	assert.True(t, hasPackageJSON)
	assert.True(t, hasApp)
}

func TestSortedPathsIsSorted(t *testing.T) {
	tpl := Get(DefaultTemplateID)
	paths := tpl.SortedPaths()
	for i := 1; i < len(paths); i++ {
		assert.LessOrEqual(t, paths[i-1], paths[i])
	}
}
