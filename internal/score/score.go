// Package score computes an agent's leadership score from its trained
// skill levels, its configured role and the kind of group it belongs to.
package score

import (
	"strings"

	"github.com/gezibash/arc-fleet/pkg/group"
)

// BoosterBonus is added to the score of any agent in the booster role.
const BoosterBonus = 10000

// Skills reports trained skill levels. Unknown skills are level zero.
type Skills interface {
	Level(name string) int
}

// Levels is a Skills backed by a map. Names are matched case-insensitively.
type Levels map[string]int

// Level implements Skills.
func (l Levels) Level(name string) int {
	if v, ok := l[name]; ok {
		return v
	}
	for k, v := range l {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return 0
}

var (
	genericSkills = []string{
		"Leadership",
		"Wing Command",
		"Fleet Command",
		"Warfare Link Specialist",
	}
	combatSkills = []string{
		"Information Warfare",
		"Armored Warfare",
		"Siege Warfare",
		"Skirmish Warfare",
	}
	miningSkills = []string{
		"Mining Director",
		"Mining Foreman",
	}
)

// Compute returns the score for an agent. Generic command skills always
// count. Combat warfare skills count for combat pilots in an anomaly combat
// group, and mining skills count for miners in a mining group.
func Compute(role group.Role, kind group.Kind, skills Skills) int {
	total := 0
	if skills != nil {
		total += sum(skills, genericSkills)
		switch {
		case role == group.RoleCombat && kind == group.KindAnomalyCombat:
			total += sum(skills, combatSkills)
		case role == group.RoleMiner && kind == group.KindMining:
			total += sum(skills, miningSkills)
		}
	}
	if role == group.RoleBooster {
		total += BoosterBonus
	}
	return total
}

func sum(skills Skills, names []string) int {
	n := 0
	for _, name := range names {
		if lvl := skills.Level(name); lvl > 0 {
			n += lvl
		}
	}
	return n
}
