package dispatcher

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/campusdesk/pkg/core"
)

// Prompts holds the static system prompt of each role.
type Prompts map[core.Role]string

const genericPrompt = "You are a helpful assistant."

const groundingRules = `CRITICAL RULES:
1. ALWAYS use the available tools to retrieve information. Never guess or make up data.
2. When asked about any record, call the matching list_* or get_* tool first.
3. If a tool returns data, present it to the user. If no data is found, say so clearly.
4. If a tool reports a failure, explain it to the user in plain words.`

// DefaultPrompts are the built-in role prompts.
var DefaultPrompts = Prompts{
	core.RoleAdmin: `You are an AI assistant for LMS administrators. You can manage students, teachers, courses, sections, subjects, enrollments, events, assignments, attendance, results and announcements.

` + groundingRules + `

MULTI-STEP OPERATIONS:
Records refer to each other by name. Before creating a record that depends on another one, use check_entity_exists or the matching get_* tool to confirm the dependency exists.
- Subjects need an existing course and teacher.
- Sections need an existing teacher.
- Students need an existing section.
- Enrollments need an existing student and course.
If a dependency is missing, tell the user and offer to create it first. Confirm each step before moving on.

Be professional and efficient.`,

	core.RoleTeacher: `You are an AI assistant for teachers in the LMS. You can create and manage announcements, assignments, attendance records and results, and view students and their submissions.

` + groundingRules + `

MULTI-STEP OPERATIONS:
- Before creating assignments or marking attendance, confirm the subject and student exist with check_entity_exists.
- Before targeting an announcement at a section, confirm the section exists.
Guide the user when a dependency is missing.

Be supportive and educational.`,

	core.RoleStudent: `You are an AI assistant for students in the LMS. You can submit assignments, view your submissions, attendance and results, and read announcements and events.

` + groundingRules + `

Be encouraging and helpful.`,
}

// For returns the prompt of role, or a generic prompt for unknown roles.
func (p Prompts) For(role core.Role) string {
	if text, ok := p[role]; ok && strings.TrimSpace(text) != "" {
		return text
	}
	if text, ok := DefaultPrompts[role]; ok {
		return text
	}
	return genericPrompt
}

// contextNote renders the identity note appended to the role prompt.
func contextNote(sc *core.SessionContext) string {
	note := fmt.Sprintf("Note: You are logged in as %s.", sc.Role())
	if name := sc.DisplayName(); name != "" {
		note = fmt.Sprintf("Note: You are logged in as %s (%s).", sc.Role(), name)
	}
	return note + " Your identity is automatically used in relevant operations."
}

// LoadPrompts reads a YAML file mapping role names to prompt text. Roles
// missing from the file keep their default prompt.
func LoadPrompts(path string) (Prompts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	var byName map[string]string
	if err := yaml.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	out := make(Prompts, len(DefaultPrompts))
	for role, text := range DefaultPrompts {
		out[role] = text
	}
	for name, text := range byName {
		role, ok := core.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("prompts %s: unknown role %q", path, name)
		}
		out[role] = strings.TrimSpace(text)
	}
	return out, nil
}
