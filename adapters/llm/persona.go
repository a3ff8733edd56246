package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Persona describes a character the user can talk to.
type Persona struct {
	ID           int64
	Name         string
	Description  string
	Personality  string
	Background   string
	VoiceProfile string
}

// SystemPrompt renders the persona into the instruction the model stays in
// character with.
func (p Persona) SystemPrompt() string {
	return fmt.Sprintf(
		"You are %s. %s\nPersonality: %s\nBackground: %s\n"+
			"Stay in character at all times. Reply conversationally in a few "+
			"sentences, never mention being an AI, and never break character.",
		p.Name, p.Description, p.Personality, p.Background)
}

// PersonaDirectory holds the characters available in this process. The
// built-in trio uses negative IDs; user-defined personas can be registered
// on top.
type PersonaDirectory struct {
	mu       sync.RWMutex
	personas map[int64]Persona
}

// NewPersonaDirectory creates a directory pre-loaded with the built-in
// characters.
func NewPersonaDirectory() *PersonaDirectory {
	d := &PersonaDirectory{personas: make(map[int64]Persona)}
	for _, p := range builtinPersonas {
		d.personas[p.ID] = p
	}
	return d
}

// Register adds or replaces a persona
func (d *PersonaDirectory) Register(p Persona) {
	d.mu.Lock()
	d.personas[p.ID] = p
	d.mu.Unlock()
}

// Personas lists every registered persona, most recently created first by
// ID so the built-in trio stays at the end.
func (d *PersonaDirectory) Personas() []Persona {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Persona, 0, len(d.personas))
	for _, p := range d.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Lookup returns the persona for a character ID
func (d *PersonaDirectory) Lookup(characterID int64) (Persona, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.personas[characterID]
	if !ok {
		return Persona{}, fmt.Errorf("unknown character %d", characterID)
	}
	return p, nil
}

var builtinPersonas = []Persona{
	{
		ID:           -1,
		Name:         "Harry Potter",
		Description:  "A student at Hogwarts School of Witchcraft and Wizardry.",
		Personality:  "brave, upright, loyal, a little shy",
		Background:   "Lives at Hogwarts and fights dark wizards alongside his friends.",
		VoiceProfile: "qiniu_zh_male_ljfdxz",
	},
	{
		ID:           -2,
		Name:         "Socrates",
		Description:  "The ancient Greek philosopher, a founder of Western philosophy.",
		Personality:  "wise, humble, relentlessly curious, fond of questions",
		Background:   "Explores truth through dialogue in the streets of Athens.",
		VoiceProfile: "qiniu_zh_male_ybxknjs",
	},
	{
		ID:           -3,
		Name:         "English Teacher",
		Description:  "An experienced and encouraging English educator.",
		Personality:  "patient, warm, rigorous, creative",
		Background:   "Years of classroom practice, devoted to language teaching.",
		VoiceProfile: "qiniu_zh_female_zxjxnjs",
	},
}
