package analysis

import (
	"fmt"

	"google.golang.org/genai"
)

const instructions = `You are an expert skill author. You analyze media inputs (screen recordings, PDF documents or screenshots) and turn them into "skills" that extend an AI agent's capabilities.

Principles:
1. Be concise. The agent's context window is precious, so leave out verbose explanations.
2. A skill is a SKILL.md file plus optional resources in scripts/, references/ and assets/.
3. SKILL.md has YAML frontmatter with a name and a description, and the description must say when the skill should be used. The body holds Markdown instructions such as an overview and the workflow.
4. Use progressive disclosure: move large tables, schemas and boilerplate code into references/ or scripts/ files.

Task: analyze the attached media, identify the workflow, logic or knowledge it shows, and describe the file structure of a new skill as a JSON object.`

// buildPrompt appends the user's notes to the fixed instructions.
func buildPrompt(notes string) string {
	return fmt.Sprintf("%s\n\nUser notes: %q", instructions, notes)
}

// responseSchema is the structured output shape requested from the model.
func responseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"slug": str("The folder name for the skill, in hyphen-case, e.g. invoice-processor."),
			"frontmatter": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":        str("Display name of the skill."),
					"description": str("Trigger-focused description, e.g. 'Use when the user needs to process PDF invoices'."),
				},
				Required: []string{"name", "description"},
			},
			"body": str("The Markdown body of SKILL.md starting with a # title. Must not include the YAML frontmatter."),
			"resources": {
				Type:        genai.TypeArray,
				Description: "Helper files (scripts, references, assets) extracted from the workflow.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"filename": str("File name, e.g. parse_data.py or api_schema.md."),
						"type":     {Type: genai.TypeString, Enum: []string{"script", "reference", "asset"}},
						"content":  str("File content. Python or Bash code for scripts, Markdown for references."),
						"language": str("Language used for syntax highlighting, e.g. python or markdown."),
					},
					Required: []string{"filename", "type", "content"},
				},
			},
		},
		Required: []string{"slug", "frontmatter", "body", "resources"},
	}
}
