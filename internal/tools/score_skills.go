package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// 技能领域匹配规则，覆盖后端/前端/数据库/运维/云平台五个方向。
// 后端关键词按整词匹配，避免 JavaScript 命中 java、Django 命中 go 这类误判。
var (
	backendSkillRegex  = regexp.MustCompile(`(?i)\b(java|spring|python|node(\.js)?|go|golang|rust|php|ruby)\b|c\+\+`)
	backendLabelRegex  = regexp.MustCompile(`(?i)后端|server|backend`)
	frontendSkillRegex = regexp.MustCompile(`(?i)react|vue|angular|javascript|typescript|html|css`)
	frontendLabelRegex = regexp.MustCompile(`(?i)前端|frontend|web`)
	databaseSkillRegex = regexp.MustCompile(`(?i)mysql|postgresql|mongodb|redis|elasticsearch|oracle`)
	databaseLabelRegex = regexp.MustCompile(`(?i)数据库|database|db`)
	devopsSkillRegex   = regexp.MustCompile(`(?i)docker|kubernetes|k8s|jenkins|ci/cd|linux`)
	devopsLabelRegex   = regexp.MustCompile(`(?i)运维|devops|部署`)
	cloudSkillRegex    = regexp.MustCompile(`(?i)aws|azure|gcp|aliyun|腾讯云|华为云`)
)

func anyMatch(skills []string, re *regexp.Regexp) bool {
	for _, skill := range skills {
		if re.MatchString(skill) {
			return true
		}
	}
	return false
}

// expectedSkillCount 根据工作年限返回期望的技能数量。
func expectedSkillCount(yearsOfExperience int) int {
	switch {
	case yearsOfExperience <= 1:
		return 5 // 应届生或1年经验，期望5个左右技能
	case yearsOfExperience <= 3:
		return 8 // 2-3年经验，期望8个左右技能
	case yearsOfExperience <= 5:
		return 12 // 4-5年经验，期望12个左右技能
	case yearsOfExperience <= 8:
		return 15 // 6-8年经验，期望15个左右技能
	default:
		return 18 // 8年以上经验，期望18个以上技能
	}
}

// ScoreSkills 根据毕业时间和技能列表对简历技能打分。
// 评审规则：毕业时间越久，工作经验越多，技能应该越多、应用越深入。
// 打分范围：5-10分。纯函数：相同输入恒等输出。
func ScoreSkills(graduationYear int, skills []string) (int, string) {
	return scoreSkillsAt(time.Now().Year(), graduationYear, skills)
}

func scoreSkillsAt(currentYear, graduationYear int, skills []string) (int, string) {
	yearsOfExperience := currentYear - graduationYear
	skillCount := len(skills)
	var feedback strings.Builder

	// 技能数量评分（占40%权重）
	expected := expectedSkillCount(yearsOfExperience)
	skillCountRatio := float64(skillCount) / float64(expected)
	var skillCountScore int
	switch {
	case skillCountRatio >= 1.2:
		skillCountScore = 10
		feedback.WriteString("技能数量丰富，远超同工作年限的期望值。")
	case skillCountRatio >= 1.0:
		skillCountScore = 9
		feedback.WriteString("技能数量充足，符合工作年限。")
	case skillCountRatio >= 0.8:
		skillCountScore = 7
		feedback.WriteString(fmt.Sprintf("技能数量略少，建议补充更多技能（当前%d个，建议%d个左右）。", skillCount, expected))
	case skillCountRatio >= 0.6:
		skillCountScore = 6
		feedback.WriteString(fmt.Sprintf("技能数量不足，与%d年工作经验不匹配（当前%d个，建议%d个左右）。", yearsOfExperience, skillCount, expected))
	default:
		skillCountScore = 5
		feedback.WriteString(fmt.Sprintf("技能数量严重不足，需要大幅补充技能（当前%d个，建议%d个左右）。", skillCount, expected))
	}

	// 技能深度评估（占60%权重）：检查五个核心技术领域的覆盖情况
	hasBackend := anyMatch(skills, backendSkillRegex) || anyMatch(skills, backendLabelRegex)
	hasFrontend := anyMatch(skills, frontendSkillRegex) || anyMatch(skills, frontendLabelRegex)
	hasDatabase := anyMatch(skills, databaseSkillRegex) || anyMatch(skills, databaseLabelRegex)
	hasDevOps := anyMatch(skills, devopsSkillRegex) || anyMatch(skills, devopsLabelRegex)
	hasCloud := anyMatch(skills, cloudSkillRegex)

	categoryCount := 0
	for _, has := range []bool{hasBackend, hasFrontend, hasDatabase, hasDevOps, hasCloud} {
		if has {
			categoryCount++
		}
	}

	var skillDepthScore int
	switch {
	case yearsOfExperience <= 1:
		// 应届生：至少要有1-2个技术栈
		switch {
		case categoryCount >= 2:
			skillDepthScore = 9
			feedback.WriteString("技能广度良好，覆盖多个技术领域。")
		case categoryCount >= 1:
			skillDepthScore = 7
			feedback.WriteString("建议扩展技能广度，学习更多技术栈。")
		default:
			skillDepthScore = 5
			feedback.WriteString("技能广度不足，需要学习核心技术栈。")
		}
	case yearsOfExperience <= 3:
		// 2-3年：至少要有2-3个技术栈
		switch {
		case categoryCount >= 3:
			skillDepthScore = 10
			feedback.WriteString("技能广度优秀，技术栈覆盖全面。")
		case categoryCount >= 2:
			skillDepthScore = 8
			feedback.WriteString("技能广度良好，建议继续扩展。")
		default:
			skillDepthScore = 6
			feedback.WriteString("技能广度不足，建议学习更多技术栈。")
		}
	case yearsOfExperience <= 5:
		// 4-5年：至少要有3-4个技术栈
		switch {
		case categoryCount >= 4:
			skillDepthScore = 10
			feedback.WriteString("技能广度优秀，技术栈覆盖全面。")
		case categoryCount >= 3:
			skillDepthScore = 8
			feedback.WriteString("技能广度良好，符合工作年限。")
		default:
			skillDepthScore = 6
			feedback.WriteString("技能广度不足，建议扩展更多技术领域。")
		}
	default:
		// 5年以上：至少要有4-5个技术栈
		switch {
		case categoryCount >= 5:
			skillDepthScore = 10
			feedback.WriteString("技能广度优秀，技术栈覆盖全面，符合资深开发者水平。")
		case categoryCount >= 4:
			skillDepthScore = 9
			feedback.WriteString("技能广度良好，建议继续扩展。")
		default:
			skillDepthScore = 7
			feedback.WriteString("技能广度需要提升，资深开发者应掌握更多技术栈。")
		}
	}

	// 综合评分（技能数量40% + 技能深度60%），四舍五入并钳制在 [5,10]
	score := int(math.Round(float64(skillCountScore)*0.4 + float64(skillDepthScore)*0.6))
	if score < 5 {
		score = 5
	}
	if score > 10 {
		score = 10
	}

	// 针对缺失领域的补充建议
	var extras []string
	if skillCount < expected {
		extras = append(extras, fmt.Sprintf("建议补充%d个左右技能", expected-skillCount))
	}
	if !hasBackend && !hasFrontend {
		extras = append(extras, "建议学习至少一个核心技术栈（后端或前端）")
	}
	if !hasDatabase {
		extras = append(extras, "建议学习数据库相关技能")
	}
	if yearsOfExperience >= 3 && !hasDevOps {
		extras = append(extras, "建议学习DevOps相关技能")
	}
	if yearsOfExperience >= 5 && !hasCloud {
		extras = append(extras, "建议学习云平台相关技能")
	}

	parts := []string{}
	if fb := strings.TrimSpace(feedback.String()); fb != "" {
		parts = append(parts, fb)
	} else {
		parts = append(parts, "技能评估完成。")
	}
	if len(extras) > 0 {
		parts = append(parts, strings.Join(extras, "；"))
	}
	suggestion := strings.Join(parts, " ")

	return score, suggestion
}

// NewScoreSkillsTool 创建技能评分工具。
// 注意：该工具在简历优化助手中已定义但未激活（配置开关，保留能力）。
func NewScoreSkillsTool() *Tool {
	minYear := float64(1950)
	maxYear := float64(2100)
	return &Tool{
		Name:        "scoreSkills",
		Description: "对简历中的技能进行评分。根据毕业时间和技能列表，评估技能的深度和广度是否与工作经验相匹配。毕业时间越久，工作经验越多，技能应该越多、应用越深入。",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"graduationYear": {
					Type:        "integer",
					Description: "毕业年份（例如：2020）",
					Minimum:     &minYear,
					Maximum:     &maxYear,
				},
				"skills": {
					Type:        "array",
					Description: "技能列表，例如：['Java', 'Spring Boot', 'MySQL', 'Redis']",
					Items:       &Property{Type: "string"},
				},
			},
			Required: []string{"graduationYear", "skills"},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			year, ok := params["graduationYear"].(float64)
			if !ok {
				return nil, fmt.Errorf("invalid graduationYear")
			}
			graduationYear := int(year)
			if graduationYear < 1950 || graduationYear > 2100 {
				return nil, fmt.Errorf("graduationYear out of range: %d", graduationYear)
			}

			rawSkills, ok := params["skills"].([]interface{})
			if !ok || len(rawSkills) == 0 {
				return nil, fmt.Errorf("skills must be a non-empty list")
			}
			skills := make([]string, 0, len(rawSkills))
			for _, s := range rawSkills {
				str, ok := s.(string)
				if !ok {
					return nil, fmt.Errorf("invalid skill entry: %v", s)
				}
				skills = append(skills, str)
			}

			score, suggestion := ScoreSkills(graduationYear, skills)
			return map[string]interface{}{
				"score":      score,
				"suggestion": suggestion,
			}, nil
		},
	}
}
