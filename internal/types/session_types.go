package types

import "fmt"

// SetupStage 测评会话的流程阶段
// 流程固定为 city → language → streams → priorities → chat → report → post_report
type SetupStage string

const (
	// StageCity 采集城市/省份
	StageCity SetupStage = "city"
	// StageLanguage 选择对话语言
	StageLanguage SetupStage = "language"
	// StageStreams 选择学科方向（可多选）
	StageStreams SetupStage = "streams"
	// StagePriorities 选择职业优先级（可多选）
	StagePriorities SetupStage = "priorities"
	// StageChat 测评对话进行中
	StageChat SetupStage = "chat"
	// StageReport 报告已生成
	StageReport SetupStage = "report"
	// StagePostReport 报告后跟进对话
	StagePostReport SetupStage = "post_report"
)

// stageOrder 各阶段的先后次序，用于转移校验
var stageOrder = map[SetupStage]int{
	StageCity:       0,
	StageLanguage:   1,
	StageStreams:    2,
	StagePriorities: 3,
	StageChat:       4,
	StageReport:     5,
	StagePostReport: 6,
}

// Next 返回当前阶段的下一阶段；已到末尾时返回自身
func (s SetupStage) Next() SetupStage {
	switch s {
	case StageCity:
		return StageLanguage
	case StageLanguage:
		return StageStreams
	case StageStreams:
		return StagePriorities
	case StagePriorities:
		return StageChat
	case StageChat:
		return StageReport
	case StageReport:
		return StagePostReport
	default:
		return s
	}
}

// CanAdvanceTo 校验从当前阶段到目标阶段的转移是否合法
// 只允许前进一步，禁止跳级与回退
func (s SetupStage) CanAdvanceTo(target SetupStage) error {
	cur, ok := stageOrder[s]
	if !ok {
		return fmt.Errorf("未知的会话阶段: %s", s)
	}
	next, ok := stageOrder[target]
	if !ok {
		return fmt.Errorf("未知的会话阶段: %s", target)
	}
	if next != cur+1 {
		return fmt.Errorf("非法的阶段转移: %s -> %s", s, target)
	}
	return nil
}

// AssessmentType 测评类型（学生版 / 家长版）
type AssessmentType string

const (
	AssessmentStudent AssessmentType = "student"
	AssessmentParent  AssessmentType = "parent"
)

// SupportedLanguages 可选的对话语言
var SupportedLanguages = []string{"English", "Hindi", "Tamil", "Bengali"}

// StreamOptions 学科方向选项
var StreamOptions = []string{
	"Science (PCM - Physics, Chemistry, Math)",
	"Science (PCB - Physics, Chemistry, Biology)",
	"Commerce (with Math)",
	"Commerce (without Math)",
	"Arts/Humanities",
	"Vocational/Technical",
	"Still deciding/Multiple options",
}

// PriorityOptions 职业优先级选项
var PriorityOptions = []string{
	"Good Salary",
	"Job guarantee/stability",
	"Job in hometown/village",
	"Live near family",
	"Social respect/status",
	"Foreign/urban opportunities",
	"Work-life balance",
	"Skill/art development",
	"Established/known career",
}

// SetupState 测评会话在进入对话阶段前采集到的设置
type SetupState struct {
	City       string   `json:"city"`
	State      string   `json:"state"`
	Language   string   `json:"language"`
	Streams    []string `json:"streams"`
	Priorities []string `json:"priorities"`
}

// FamilyMember 家庭组内的一位成员及其测评完成状态
type FamilyMember struct {
	MemberID    string         `json:"member_id"`
	DisplayName string         `json:"display_name"`
	Role        AssessmentType `json:"role"`
	SessionID   string         `json:"session_id,omitempty"`
	Completed   bool           `json:"completed"`
	JoinedAt    string         `json:"joined_at"`
}

// FamilyGroup 通过家庭码关联的一组测评参与者
// 同一家庭的学生版与家长版测评共享该记录
type FamilyGroup struct {
	FamilyCode string         `json:"family_code"`
	Members    []FamilyMember `json:"members"`
	CreatedAt  string         `json:"created_at"`
}
