// Package perspective holds the analytical lenses the orchestrator rotates
// through. A lens is a prompt addition, not a separate agent.
package perspective

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLens is returned for a lens ID outside the catalog.
var ErrUnknownLens = errors.New("unknown perspective lens")

// Lens is one analytical viewpoint.
type Lens struct {
	ID                   string
	Name                 string
	Focus                string
	SystemPromptAddition string
}

var lenses = []Lens{
	{
		ID:    "architect",
		Name:  "System Architect",
		Focus: "System design, integration patterns, scalability, architectural coherence",
		SystemPromptAddition: `Apply the ARCHITECT lens:
- Identify system-level design patterns and architectural decisions
- Trace integration points and dependencies between components
- Weigh scalability and performance consequences
- Check that the architecture is consistent with itself
- Look for single points of failure and bottlenecks`,
	},
	{
		ID:    "security",
		Name:  "Security Analyst",
		Focus: "Security vulnerabilities, access control, data protection, compliance",
		SystemPromptAddition: `Apply the SECURITY lens:
- Look for vulnerabilities and attack vectors
- Examine authentication and access control
- Check for data exposure and privacy risks
- Compare against applicable security standards
- Name missing controls explicitly`,
	},
	{
		ID:    "business",
		Name:  "Business Analyst",
		Focus: "Business requirements, user stories, acceptance criteria, business logic",
		SystemPromptAddition: `Apply the BUSINESS lens:
- Confirm each business requirement is fulfilled
- Check user stories against their acceptance criteria
- Judge whether business rules are complete
- Flag functionality the business expects but nothing provides
- Flag requirements that have no implementation`,
	},
	{
		ID:    "developer",
		Name:  "Developer",
		Focus: "Technical implementation, code quality, API completeness, error handling",
		SystemPromptAddition: `Apply the DEVELOPER lens:
- Judge the quality of the technical implementation
- Check how completely the code covers what was asked
- Verify APIs are complete and consistent
- Look at error handling and edge cases
- Call out technical debt and unfinished work`,
	},
	{
		ID:    "user",
		Name:  "End User Advocate",
		Focus: "Usability, accessibility, user experience, intuitive behavior",
		SystemPromptAddition: `Apply the USER lens:
- Walk through the user-facing flows
- Check accessibility
- Consider edge cases as a user would meet them
- Confirm behaviour matches what a user would expect
- Flag confusing or undocumented features`,
	},
}

// All returns the lenses in catalog order.
func All() []Lens {
	out := make([]Lens, len(lenses))
	copy(out, lenses)
	return out
}

// IDs returns the lens IDs in catalog order.
func IDs() []string {
	ids := make([]string, len(lenses))
	for i, l := range lenses {
		ids[i] = l.ID
	}
	return ids
}

// Get returns the lens with the given ID (case-insensitive).
func Get(id string) (Lens, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	for _, l := range lenses {
		if l.ID == key {
			return l, nil
		}
	}
	return Lens{}, fmt.Errorf("%w: %q", ErrUnknownLens, id)
}

// Validate checks that every ID names a lens and that the list is non-empty.
func Validate(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no lenses configured", ErrUnknownLens)
	}
	for _, id := range ids {
		if _, err := Get(id); err != nil {
			return err
		}
	}
	return nil
}

// ForTurn returns the lens for a 1-based turn number, cycling through ids.
func ForTurn(ids []string, turn int) (Lens, error) {
	if len(ids) == 0 {
		return Lens{}, fmt.Errorf("%w: no lenses configured", ErrUnknownLens)
	}
	if turn < 1 {
		turn = 1
	}
	return Get(ids[(turn-1)%len(ids)])
}
