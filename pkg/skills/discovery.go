package skills

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/jingkaihe/skillforge/pkg/archive"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// ErrNotInstalled is returned when no skill directory has the requested name.
var ErrNotInstalled = errors.New("skill is not installed")

// Discovery finds installed skills in a list of skills directories
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories, highest precedence first
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithDefaultDirs uses the repo-local and user-global kodelet skills
// directories
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		dirs, err := DefaultDirs()
		if err != nil {
			return err
		}
		d.skillDirs = dirs
		return nil
	}
}

// DefaultDirs returns the skills directories searched when none are given
func DefaultDirs() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user home directory")
	}
	return []string{
		filepath.Join(".", ".kodelet", "skills"),
		filepath.Join(homeDir, ".kodelet", "skills"),
	}, nil
}

// NewDiscovery creates a new skill discovery instance. Without options the
// default directories are searched.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}
	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dirs returns the searched directories
func (d *Discovery) Dirs() []string {
	return append([]string(nil), d.skillDirs...)
}

// Discover lists the installed skills sorted by name. When two directories
// hold a skill with the same name the one in the earlier directory wins.
// Subdirectories without a loadable SKILL.md are skipped.
func (d *Discovery) Discover(ctx context.Context) ([]*Installed, error) {
	byName := map[string]*Installed{}

	for _, dir := range d.skillDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.G(ctx).WithError(err).WithField("dir", dir).Debug("failed to read skills directory")
			}
			continue
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())
			info, err := os.Stat(entryPath)
			if err != nil || !info.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}

			s, err := Load(entryPath)
			if err != nil {
				logger.G(ctx).WithError(err).WithField("dir", entryPath).Debug("skipping skill directory")
				continue
			}
			if _, exists := byName[s.Name]; !exists {
				byName[s.Name] = s
			}
		}
	}

	installed := make([]*Installed, 0, len(byName))
	for _, s := range byName {
		installed = append(installed, s)
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].Name < installed[j].Name })
	return installed, nil
}

// Get returns the installed skill with the given frontmatter name or
// directory name
func (d *Discovery) Get(ctx context.Context, name string) (*Installed, error) {
	installed, err := d.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range installed {
		if s.Name == name || s.Package.Slug == name {
			return s, nil
		}
	}
	return nil, errors.Wrapf(ErrNotInstalled, "%s", name)
}

// Load reads the skill installed in dir
func Load(dir string) (*Installed, error) {
	content, err := os.ReadFile(filepath.Join(dir, skill.DocumentFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	resources, err := loadResources(dir)
	if err != nil {
		return nil, err
	}

	return &Installed{
		Name:        name,
		Description: description,
		Directory:   dir,
		Package: skill.SkillPackage{
			Slug:        filepath.Base(dir),
			Frontmatter: skill.Frontmatter{Name: name, Description: description},
			Body:        extractBodyContent(string(content)),
			Resources:   resources,
		},
	}, nil
}

// loadResources reads the files directly under the scripts, references and
// assets directories in that order, each sorted by filename.
func loadResources(dir string) ([]skill.SkillFile, error) {
	var files []skill.SkillFile
	for _, ft := range skill.FileTypes {
		entries, err := os.ReadDir(filepath.Join(dir, ft.Dir()))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", ft.Dir())
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, ft.Dir(), entry.Name()))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s/%s", ft.Dir(), entry.Name())
			}
			files = append(files, skill.SkillFile{
				Filename: entry.Name(),
				Content:  string(data),
				Type:     ft,
				Language: archive.LanguageFor(entry.Name()),
			})
		}
	}
	return files, nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}
	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}
