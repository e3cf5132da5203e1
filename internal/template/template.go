// Package template ships the project scaffolds seeded into a fresh compose
// deployment. Each template bundles a docker-compose file and a set of
// starter files, keyed by path relative to the project root with a leading
// slash (e.g. "/package.json").
package template

import (
	"embed"
	"io/fs"
	"sort"

	"github.com/bolthost/runtime/internal/logger"
)

//go:embed assets
var assets embed.FS

const DefaultTemplateID = "vite-react"

var log = logger.Component("template")

// Template is a seedable project scaffold.
type Template struct {
	ID          string
	ComposeFile string
	Files       map[string]string // project-root-relative path ("/package.json") -> content
}

var registry map[string]*Template

func init() {
	registry = map[string]*Template{}
	must(loadTemplate(DefaultTemplateID))
}

func must(t *Template, err error) {
	if err != nil {
		panic(err)
	}
	registry[t.ID] = t
}

func loadTemplate(id string) (*Template, error) {
	root := "assets/" + id
	composeBytes, err := assets.ReadFile(root + "/docker-compose.yml")
	if err != nil {
		return nil, err
	}

	files := map[string]string{}
	err = fs.WalkDir(assets, root+"/files", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		content, err := assets.ReadFile(path)
		if err != nil {
			return err
		}
		virtual := path[len(root+"/files"):]
		files[virtual] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Template{ID: id, ComposeFile: string(composeBytes), Files: files}, nil
}

// Get resolves a templateId to a Template, falling back to the default
// template for unknown or empty ids.
func Get(templateID string) *Template {
	if t, ok := registry[templateID]; ok {
		return t
	}
	if templateID != "" {
		log.Warn().Str("template_id", templateID).Msg("unknown template id, falling back to default")
	}
	return registry[DefaultTemplateID]
}

// SortedPaths returns a template's file paths in deterministic order, for
// predictable seeding logs and tests.
func (t *Template) SortedPaths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
