package analysis

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptSpec struct {
	Subject    string   `yaml:"subject"`
	Purpose    string   `yaml:"purpose"`
	Criteria   string   `yaml:"criteria"`
	Fields     []string `yaml:"fields"`
	IssueTypes []string `yaml:"issue_types"`
}

var (
	promptsOnce sync.Once
	prompts     map[Kind]promptSpec
	promptsErr  error
)

func loadPrompts() (map[Kind]promptSpec, error) {
	promptsOnce.Do(func() {
		var raw map[string]promptSpec
		if err := yaml.Unmarshal(promptsYAML, &raw); err != nil {
			promptsErr = fmt.Errorf("parsing prompts: %w", err)
			return
		}
		prompts = make(map[Kind]promptSpec, len(raw))
		for k, v := range raw {
			kind, err := ParseKind(k)
			if err != nil {
				promptsErr = err
				return
			}
			prompts[kind] = v
		}
	})
	return prompts, promptsErr
}

// Prompt builds the request text for kind. name is the step name (or the
// accessory type name) substituted into the prompt.
func Prompt(kind Kind, name string) (string, error) {
	all, err := loadPrompts()
	if err != nil {
		return "", err
	}
	tmpl, ok := all[kind]
	if !ok {
		return "", fmt.Errorf("no prompt for kind %q", kind)
	}

	fill := strings.NewReplacer("{name}", name, "{name_lower}", strings.ToLower(name))

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s for %s. Please evaluate:\n\n", fill.Replace(tmpl.Subject), tmpl.Purpose)
	b.WriteString(strings.TrimRight(fill.Replace(tmpl.Criteria), "\n"))
	b.WriteString("\n\nPlease respond in JSON format with the following structure:\n{\n")
	b.WriteString("  \"overallQuality\": \"good\" | \"needs_improvement\" | \"poor\",\n")
	b.WriteString("  \"confidence\": number (0-100),\n")
	for _, f := range tmpl.Fields {
		b.WriteString("  " + f + ",\n")
	}
	b.WriteString("  \"issues\": [\n    {\n")
	fmt.Fprintf(&b, "      \"type\": %s,\n", quoteJoin(tmpl.IssueTypes))
	b.WriteString("      \"message\": \"Description of the issue\",\n")
	b.WriteString("      \"severity\": \"low\" | \"medium\" | \"high\"\n")
	b.WriteString("    }\n  ],\n")
	b.WriteString("  \"recommendations\": [\n    \"Specific recommendation text\"\n  ],\n")
	b.WriteString("  \"shouldRetake\": boolean\n}")
	return b.String(), nil
}

func quoteJoin(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, " | ")
}
