package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// maxNameAttempts bounds the search for a free file name in Export.
const maxNameAttempts = 1000

// Export packs p into dir/<slug>.zip. An existing archive is never
// overwritten: the name gets a numeric suffix (<slug>-2.zip, ...) instead.
// It returns the path written.
func Export(ctx context.Context, p skill.SkillPackage, dir string) (string, error) {
	data, err := Pack(ctx, p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	tmp, err := os.CreateTemp(dir, ".skillforge-export-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary archive")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "failed to write archive")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "failed to write archive")
	}

	for i := 1; i <= maxNameAttempts; i++ {
		name := Filename(p)
		if i > 1 {
			name = fmt.Sprintf("%s-%d%s", p.Slug, i, Extension)
		}
		target := filepath.Join(dir, name)
		// Link fails when target exists, which keeps the check atomic.
		if err := os.Link(tmp.Name(), target); err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", errors.Wrapf(err, "failed to move archive to %s", target)
		}
		logger.G(ctx).WithField("path", target).WithField("bytes", len(data)).Info("exported skill archive")
		return target, nil
	}
	return "", errors.Errorf("no free archive name for %s in %s", p.Slug, dir)
}
