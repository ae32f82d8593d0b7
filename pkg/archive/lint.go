package archive

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

var hyphenCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Lint reports problems that do not make a package malformed but would
// surprise a consumer of the exported archive: duplicate paths that
// overwrite each other, a non hyphen-case slug, and frontmatter that a
// YAML-based skill loader would read differently from what was written.
func Lint(p skill.SkillPackage) []string {
	var warnings []string

	if !hyphenCase.MatchString(p.Slug) {
		warnings = append(warnings, fmt.Sprintf("slug %q is not hyphen-case", p.Slug))
	}
	if strings.TrimSpace(p.Body) == "" {
		warnings = append(warnings, "SKILL.md body is empty")
	}

	seen := map[string]int{}
	for _, f := range p.Resources {
		seen[f.Path()]++
	}
	for _, f := range p.Resources {
		if n := seen[f.Path()]; n > 1 {
			warnings = append(warnings, fmt.Sprintf("%s appears %d times, only the last one is exported", f.Path(), n))
			seen[f.Path()] = 0
		}
	}

	return append(warnings, lintFrontmatter(p)...)
}

// lintFrontmatter parses the rendered document the way goldmark-meta based
// skill discovery does and compares the values it would see.
func lintFrontmatter(p skill.SkillPackage) []string {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	var buf bytes.Buffer

	if err := md.Convert([]byte(RenderDocument(p)), &buf, parser.WithContext(pctx)); err != nil {
		return []string{fmt.Sprintf("SKILL.md does not parse as markdown: %v", err)}
	}

	values, err := meta.TryGet(pctx)
	if err != nil {
		return []string{fmt.Sprintf("SKILL.md frontmatter is not valid YAML: %v", err)}
	}

	var warnings []string
	check := func(key, want string) {
		got, ok := values[key].(string)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("frontmatter %s is not read back as text", key))
			return
		}
		if got != want {
			warnings = append(warnings, fmt.Sprintf("frontmatter %s is read back as %q", key, got))
		}
	}
	check("name", p.Frontmatter.Name)
	check("description", p.Frontmatter.Description)
	return warnings
}
