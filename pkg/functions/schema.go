package functions

import (
	"fmt"
	"strings"
)

// Parameter describes one named function parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Schema describes a function to the planning LLM.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	// RequiresConfirmation gates execution behind a human approval.
	RequiresConfirmation bool `json:"requiresConfirmation,omitempty"`
}

// PromptBlock renders the schema as the XML fragment embedded in the
// planning prompt.
func (s Schema) PromptBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<function name=%q>\n", s.Name)
	fmt.Fprintf(&b, "  <description>%s</description>\n", s.Description)
	for _, p := range s.Parameters {
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  <parameter name=%q type=%q %s>%s</parameter>\n",
			p.Name, p.Type, req, p.Description)
	}
	b.WriteString("</function>")
	return b.String()
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", name, v)
	}
	return s, nil
}

// stringSliceParam extracts a list-of-strings parameter, tolerating the
// []any shape JSON decoding produces.
func stringSliceParam(params map[string]any, name string) ([]string, error) {
	v, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q must be a list of strings", name)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a list of strings, got %T", name, v)
	}
}
