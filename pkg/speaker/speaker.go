package speaker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jwebster45206/d20"
)

var validID = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

// Spec is the serializable profile of a script speaker. Display fields
// drive clients; the optional game stats let a host game drop the speaker
// into combat as a d20 actor.
type Spec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Pronouns    string `json:"pronouns,omitempty"`
	Role        string `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"` // terminal color hint, e.g. "212"

	// Game stats, all optional. A speaker with no MaxHP is narration-only
	// and never becomes an actor.
	HP              int            `json:"hp,omitempty"`
	MaxHP           int            `json:"max_hp,omitempty"`
	AC              int            `json:"ac,omitempty"`
	Attributes      map[string]int `json:"attributes,omitempty"`
	CombatModifiers map[string]int `json:"combat_modifiers,omitempty"`
}

// Validate checks the fields required of every speaker file.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("speaker id is required")
	}
	if !validID.MatchString(s.ID) {
		return fmt.Errorf("speaker id %q must be lowercase snake_case", s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("speaker %q: name is required", s.ID)
	}
	return nil
}

// Speaker is the runtime form of a spec, with the d20 actor built when the
// spec carries stats.
type Speaker struct {
	Spec  *Spec
	Actor *d20.Actor
}

// NewSpeakerFromSpec validates a spec and builds its actor.
func NewSpeakerFromSpec(spec *Spec) (*Speaker, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	sp := &Speaker{Spec: spec}
	if spec.MaxHP <= 0 {
		return sp, nil
	}

	actor, err := d20.NewActor(spec.ID).
		WithHP(spec.MaxHP).
		WithAC(spec.AC).
		WithAttributes(spec.Attributes).
		WithCombatModifiers(spec.CombatModifiers).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}
	if spec.HP != spec.MaxHP && spec.HP > 0 {
		if err := actor.SetHP(spec.HP); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}
	sp.Actor = actor
	return sp, nil
}

// Summary is a one-line profile for display surfaces.
//
// Example output:
// Eve (she/her), merchant. Sharp-eyed trader of the north road.
func (s *Speaker) Summary() string {
	sb := strings.Builder{}
	sb.WriteString(s.Spec.Name)
	if s.Spec.Pronouns != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", s.Spec.Pronouns))
	}
	if s.Spec.Role != "" {
		sb.WriteString(", " + s.Spec.Role)
	}
	if s.Spec.Description != "" {
		sb.WriteString(". " + s.Spec.Description)
	}
	return sb.String()
}

// Match finds the spec whose display name matches a line's speaker,
// ignoring case. Script speaker fields are display names, not ids.
func Match(specs []*Spec, name string) *Spec {
	if name == "" {
		return nil
	}
	for _, spec := range specs {
		if strings.EqualFold(spec.Name, name) {
			return spec
		}
	}
	return nil
}
