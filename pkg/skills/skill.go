// Package skills discovers skills installed as directories holding a
// SKILL.md with YAML frontmatter, the layout agents such as kodelet load
// skills from.
package skills

import (
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Installed is a skill found on disk
type Installed struct {
	Name        string // name from frontmatter
	Description string // description from frontmatter
	Directory   string // full path to the skill directory
	// Package is the skill package rebuilt from the directory tree. Its slug
	// is the directory name.
	Package skill.SkillPackage
}

// Files returns the resource paths of the skill relative to its directory
func (s *Installed) Files() []string {
	files := make([]string, 0, len(s.Package.Resources))
	for _, f := range s.Package.Resources {
		files = append(files, f.Path())
	}
	return files
}
