package analysis

import (
	"encoding/json"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Decode turns the raw response text into a validated package. Text that
// is blank or not JSON is an empty response; JSON that does not describe a
// well-formed package is a schema violation.
func Decode(raw string) (skill.SkillPackage, error) {
	var pkg skill.SkillPackage

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return pkg, newError(KindEmptyResponse, errors.New("response has no text"))
	}

	var doc any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return pkg, newError(KindEmptyResponse, errors.Wrap(err, "response is not JSON"))
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return pkg, newError(KindSchemaViolation, errors.Errorf("response is a JSON %T, not an object", doc))
	}
	if err := requireKeys(obj); err != nil {
		return pkg, newError(KindSchemaViolation, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &pkg,
	})
	if err != nil {
		return pkg, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(obj); err != nil {
		return skill.SkillPackage{}, newError(KindSchemaViolation, errors.Wrap(err, "response does not match the package schema"))
	}
	if err := pkg.Validate(); err != nil {
		return skill.SkillPackage{}, newError(KindSchemaViolation, err)
	}
	return pkg, nil
}

func requireKeys(obj map[string]any) error {
	var result *multierror.Error
	for _, key := range []string{"slug", "frontmatter", "body", "resources"} {
		if _, ok := obj[key]; !ok {
			result = multierror.Append(result, errors.Errorf("missing %s", key))
		}
	}
	if fm, ok := obj["frontmatter"].(map[string]any); ok {
		for _, key := range []string{"name", "description"} {
			if _, ok := fm[key]; !ok {
				result = multierror.Append(result, errors.Errorf("missing frontmatter.%s", key))
			}
		}
	}
	if resources, ok := obj["resources"].([]any); ok {
		for i, r := range resources {
			file, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"filename", "type", "content"} {
				if _, ok := file[key]; !ok {
					result = multierror.Append(result, errors.Errorf("missing resources[%d].%s", i, key))
				}
			}
		}
	}
	return result.ErrorOrNil()
}
