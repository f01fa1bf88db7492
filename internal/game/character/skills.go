package character

import "strings"

// Skill is one named skill value. Names are localized free text such as
// "Fighting (Brawl)" or "Esquivar".
type Skill struct {
	Name  string `yaml:"name" json:"name"`
	Value int    `yaml:"value" json:"value"`
}

// SkillGroup is an ordered, named list of skills as printed on a sheet.
type SkillGroup struct {
	Name   string  `yaml:"name" json:"name"`
	Skills []Skill `yaml:"skills" json:"skills"`
}

// LookupSkill returns the value of the first skill whose name matches name,
// case-insensitively, scanning groups and skills in order.
//
// The lookup makes two passes: an exact-name pass, then a substring pass
// ("Brawl" finds "Fighting (Brawl)"). The first match in sheet order wins.
//
// Postcondition: Returns 0 when no skill matches or name is blank.
func LookupSkill(groups []SkillGroup, name string) int {
	v, _ := FindSkill(groups, name)
	return v
}

// FindSkill is LookupSkill that also reports whether a match was found, so
// callers can apply their own default for missing skills.
func FindSkill(groups []SkillGroup, name string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return 0, false
	}
	for _, g := range groups {
		for _, s := range g.Skills {
			if strings.ToLower(strings.TrimSpace(s.Name)) == needle {
				return s.Value, true
			}
		}
	}
	for _, g := range groups {
		for _, s := range g.Skills {
			if strings.Contains(strings.ToLower(s.Name), needle) {
				return s.Value, true
			}
		}
	}
	return 0, false
}
