// Package analysis turns media into skill packages using a remote
// generative model.
package analysis

import (
	"context"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// Result is a decoded package together with the response text it came from.
type Result struct {
	Package skill.SkillPackage
	Raw     string
}

// Generator produces a skill package from media bytes and free-text notes.
// Failures are returned as *Error.
type Generator interface {
	Generate(ctx context.Context, data []byte, mimeType, notes string) (*Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, data []byte, mimeType, notes string) (*Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, data []byte, mimeType, notes string) (*Result, error) {
	return f(ctx, data, mimeType, notes)
}
