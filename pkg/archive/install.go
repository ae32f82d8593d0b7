package archive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// ErrSkillExists is returned by Install when the target directory is taken.
var ErrSkillExists = errors.New("skill already installed")

// Install writes the archive layout of p as a directory tree under dir, so
// dir/<slug>/SKILL.md is directly loadable by a skills directory scanner.
// The tree is staged in a temporary sibling and renamed into place.
func Install(ctx context.Context, p skill.SkillPackage, dir string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", errors.Wrap(err, "refusing to install skill")
	}

	target := filepath.Join(dir, p.Slug)
	if _, err := os.Stat(target); err == nil {
		return "", errors.Wrapf(ErrSkillExists, "%s", target)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skills directory")
	}
	staging, err := os.MkdirTemp(dir, ".skillforge-install-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create staging directory")
	}
	defer os.RemoveAll(staging)

	for _, e := range Entries(p) {
		dest := filepath.Join(staging, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory for %s", e.Path)
		}
		if err := os.WriteFile(dest, []byte(e.Content), 0o644); err != nil {
			return "", errors.Wrapf(err, "failed to write %s", e.Path)
		}
	}

	if err := os.Rename(filepath.Join(staging, p.Slug), target); err != nil {
		return "", errors.Wrap(err, "failed to move skill into place")
	}

	logger.G(ctx).WithField("path", target).Info("installed skill")
	return target, nil
}
