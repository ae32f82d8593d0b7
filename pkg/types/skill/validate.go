package skill

import (
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrMalformed marks a package that fails structural validation.
var ErrMalformed = errors.New("malformed skill package")

// Validate checks that the package is well-formed: a non-empty slug, a
// complete frontmatter, and resources with a filename and a known type.
// Every violation is reported; the result wraps ErrMalformed.
func (p SkillPackage) Validate() error {
	var result *multierror.Error

	if strings.TrimSpace(p.Slug) == "" {
		result = multierror.Append(result, errors.New("slug is required"))
	} else if !safeSegment(p.Slug) {
		result = multierror.Append(result, errors.Errorf("slug %q must be a single path segment", p.Slug))
	}
	if strings.TrimSpace(p.Frontmatter.Name) == "" {
		result = multierror.Append(result, errors.New("frontmatter.name is required"))
	}
	if strings.TrimSpace(p.Frontmatter.Description) == "" {
		result = multierror.Append(result, errors.New("frontmatter.description is required"))
	}

	for i, f := range p.Resources {
		if strings.TrimSpace(f.Filename) == "" {
			result = multierror.Append(result, errors.Errorf("resources[%d].filename is required", i))
		} else if !safeRelative(f.Filename) {
			result = multierror.Append(result, errors.Errorf("resources[%d].filename %q must be a relative path inside its directory", i, f.Filename))
		}
		if !f.Type.Valid() {
			result = multierror.Append(result, errors.Errorf("resources[%d].type %q is not one of script, reference, asset", i, f.Type))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

func safeSegment(s string) bool {
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func safeRelative(name string) bool {
	if strings.Contains(name, `\`) || path.IsAbs(name) {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
