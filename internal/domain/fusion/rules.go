package fusion

import (
	"math"
	"strings"
)

// EducationLevel orders education attainment. Unspecified sorts lowest.
type EducationLevel int

const (
	EducationUnspecified EducationLevel = iota
	EducationHighSchool
	EducationAssociate
	EducationBachelor
	EducationMaster
	EducationDoctorate
)

// DefaultCandidateEducation is assumed when a candidate's education is
// missing or unrecognized.
const DefaultCandidateEducation = EducationBachelor

// Rule scores.
const (
	RuleFull    = 1.0
	RulePartial = 0.5
)

var educationAliases = map[string]EducationLevel{
	"":            EducationUnspecified,
	"不限":          EducationUnspecified,
	"学历不限":        EducationUnspecified,
	"无要求":         EducationUnspecified,
	"any":         EducationUnspecified,
	"none":        EducationUnspecified,
	"unspecified": EducationUnspecified,
	"高中":          EducationHighSchool,
	"中专":          EducationHighSchool,
	"中技":          EducationHighSchool,
	"high school": EducationHighSchool,
	"大专":          EducationAssociate,
	"专科":          EducationAssociate,
	"associate":   EducationAssociate,
	"本科":          EducationBachelor,
	"学士":          EducationBachelor,
	"bachelor":    EducationBachelor,
	"硕士":          EducationMaster,
	"研究生":         EducationMaster,
	"master":      EducationMaster,
	"博士":          EducationDoctorate,
	"phd":         EducationDoctorate,
	"doctorate":   EducationDoctorate,
}

// ParseEducation maps a free-form education label to a level.
func ParseEducation(s string) (EducationLevel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if lvl, ok := educationAliases[s]; ok {
		return lvl, true
	}
	// "本科及以上", "master's degree" and the like; the longest alias wins.
	best, bestLen := EducationUnspecified, 0
	for alias, lvl := range educationAliases {
		if lvl == EducationUnspecified || len(alias) <= bestLen || !strings.HasPrefix(s, alias) {
			continue
		}
		best, bestLen = lvl, len(alias)
	}
	return best, bestLen > 0
}

func candidateLevel(s string) EducationLevel {
	if lvl, ok := ParseEducation(s); ok && lvl != EducationUnspecified {
		return lvl
	}
	return DefaultCandidateEducation
}

func requirementLevel(s string) EducationLevel {
	lvl, _ := ParseEducation(s)
	return lvl
}

// SkillScore is overlap/required clipped to [0,1], or 0 when nothing is required.
func SkillScore(matched, required int) float64 {
	if required <= 0 || matched <= 0 {
		return 0
	}
	return math.Min(float64(matched)/float64(required), 1)
}

// RuleScore compares a candidate's education with an item's requirement.
func RuleScore(candidateEducation, requiredEducation string) float64 {
	req := requirementLevel(requiredEducation)
	if req == EducationUnspecified || candidateLevel(candidateEducation) >= req {
		return RuleFull
	}
	return RulePartial
}

// EducationMatch grades a candidate against an item requirement.
type EducationMatch int

const (
	EducationCompatible EducationMatch = iota
	EducationPerfect
	EducationMismatch
	// EducationUnknown means one side carries no education at all, so the
	// two cannot be compared.
	EducationUnknown
)

func (m EducationMatch) String() string {
	switch m {
	case EducationPerfect:
		return "perfect"
	case EducationMismatch:
		return "mismatch"
	case EducationUnknown:
		return "unknown"
	}
	return "compatible"
}

// MatchEducation returns unknown when either label is blank, perfect for
// equal levels, compatible when the requirement is unspecified ("不限") or
// exceeded, mismatch otherwise.
func MatchEducation(candidateEducation, requiredEducation string) EducationMatch {
	if strings.TrimSpace(candidateEducation) == "" || strings.TrimSpace(requiredEducation) == "" {
		return EducationUnknown
	}
	req := requirementLevel(requiredEducation)
	if req == EducationUnspecified {
		return EducationCompatible
	}
	c := candidateLevel(candidateEducation)
	switch {
	case c == req:
		return EducationPerfect
	case c > req:
		return EducationCompatible
	}
	return EducationMismatch
}

// roleFamilies groups title keywords by role family.
var roleFamilies = [][]string{
	{"前端", "frontend", "web", "vue", "react", "javascript", "js", "css", "html", "h5"},
	{"后端", "backend", "java", "python", "go", "golang", "php", "node", "spring", "django"},
	{"全栈", "fullstack", "全端"},
	{"算法", "algorithm", "ai", "人工智能", "机器学习", "ml", "deep learning", "dl", "深度学习"},
	{"数据", "data", "大数据", "hadoop", "spark", "etl", "数仓", "bi", "分析"},
	{"测试", "test", "qa", "quality"},
	{"运维", "devops", "sre", "ops", "云", "cloud"},
	{"产品", "product", "pm"},
	{"设计", "design", "ui", "ux", "交互"},
	{"android", "安卓", "kotlin"},
	{"ios", "swift", "objective-c", "oc"},
	{"嵌入式", "embedded", "单片机", "mcu", "stm32", "arm"},
	{"游戏", "game", "unity", "unreal", "u3d", "ue4"},
}

// RoleMatch scores how well an item title fits a target role, in [0,1].
// Containment either way is a full match. Otherwise the score is the share
// of the target's role-family keywords found in the title, or the share of
// the target's words when it belongs to no family.
func RoleMatch(target, title string) float64 {
	target = strings.ToLower(strings.TrimSpace(target))
	title = strings.ToLower(strings.TrimSpace(title))
	if target == "" || title == "" {
		return 0
	}
	if strings.Contains(title, target) || strings.Contains(target, title) {
		return 1
	}

	var keywords []string
	for _, family := range roleFamilies {
		for _, kw := range family {
			if strings.Contains(target, kw) {
				keywords = append(keywords, family...)
				break
			}
		}
	}
	if len(keywords) == 0 {
		keywords = strings.Fields(target)
	}
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			hits++
		}
	}
	return math.Min(float64(hits)/float64(len(keywords)), 1)
}
