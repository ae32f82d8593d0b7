package main

import (
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of a skill package",
	Long:  `Print the JSON schema of the skill package document, e.g. for editor validation of history exports.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeJSON(cmd.OutOrStdout(), packageSchema())
	},
}

func packageSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&skill.SkillPackage{})
	schema.Title = "Skill package"
	return schema
}
