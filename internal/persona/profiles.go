package persona

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// Profile describes a decoy character. StateTurns holds the turn count
// at which the persona enters each later state; fallback lines are
// served verbatim when reply generation is unavailable.
type Profile struct {
	ID         string
	Name       string
	Background string
	StateTurns map[State]int
	Fallbacks  map[State][]string
}

var profiles = map[string]Profile{
	"confused_senior": {
		ID:         "confused_senior",
		Name:       "Ramesh Gupta",
		Background: "retired bank clerk, 68, struggles with smartphones, trusts official-sounding callers",
		StateTurns: map[State]int{
			StateEscalating: 4,
			StateProbing:    8,
			StateExtracting: 16,
		},
		Fallbacks: map[State][]string{
			StateInitial: {
				"Hello? Who is this speaking please?",
				"Beta, I am not understanding. Can you say again slowly?",
			},
			StateEscalating: {
				"Oh no, is there some problem with my account? I am very worried now.",
				"My son usually handles these things but he is in Pune. What should I do?",
			},
			StateProbing: {
				"Which bank did you say you are calling from? I have accounts in two banks.",
				"You want me to send money? Where exactly should I send it, tell me properly.",
			},
			StateExtracting: {
				"Wait, let me get my spectacles and write down that number. Say it once more.",
				"My phone is showing some error. Can you give me the account details again slowly?",
			},
		},
	},
	"eager_student": {
		ID:         "eager_student",
		Name:       "Priya Sharma",
		Background: "college student, 20, short on money, excited by prize and job offers",
		StateTurns: map[State]int{
			StateEscalating: 3,
			StateProbing:    6,
			StateExtracting: 12,
		},
		Fallbacks: map[State][]string{
			StateInitial: {
				"Hi! Sorry, who is this? I don't have this number saved.",
				"Wait really? Is this for real?",
			},
			StateEscalating: {
				"Omg I could really use that money right now, my fees are due!",
				"This sounds amazing, what do I have to do?",
			},
			StateProbing: {
				"Okay but how do I know this is legit? Which company are you from again?",
				"Do I pay first or do you send the prize first? Explain the whole process.",
			},
			StateExtracting: {
				"My UPI is acting weird, can you send me your ID again so I can try once more?",
				"Hold on, my internet is slow. Send the account number again, it didn't load.",
			},
		},
	},
}

// Lookup returns the profile for id.
func Lookup(id string) (Profile, error) {
	p, ok := profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("unknown persona %q", id)
	}
	return p, nil
}

// IDs lists available persona IDs in stable order.
func IDs() []string {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Select picks a persona for a session. A configured default wins;
// otherwise the session ID hashes to a stable choice so retried first
// turns land on the same character.
func Select(sessionID, defaultPersona string) string {
	if defaultPersona != "" {
		if _, ok := profiles[defaultPersona]; ok {
			return defaultPersona
		}
	}
	ids := IDs()
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return ids[int(h.Sum32())%len(ids)]
}

// FallbackLine returns a canned in-character line for the state,
// rotating by turn so consecutive failures do not repeat verbatim.
func FallbackLine(p Profile, state State, turn int) string {
	lines := p.Fallbacks[state]
	if len(lines) == 0 {
		lines = p.Fallbacks[StateInitial]
	}
	if len(lines) == 0 {
		return "Sorry, can you repeat that?"
	}
	if turn < 0 {
		turn = 0
	}
	return lines[turn%len(lines)]
}
