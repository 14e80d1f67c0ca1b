package processor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"career-agent-go/internal/config"
	"career-agent-go/internal/storage/models"
	"career-agent-go/internal/types"
)

func TestValidateSelections(t *testing.T) {
	t.Run("合法的多选", func(t *testing.T) {
		err := validateSelections([]string{"Good Salary", "Work-life balance"}, types.PriorityOptions)
		assert.NoError(t, err)
	})

	t.Run("空选择被拒绝", func(t *testing.T) {
		err := validateSelections(nil, types.StreamOptions)
		assert.Error(t, err)
	})

	t.Run("重复选项被拒绝", func(t *testing.T) {
		err := validateSelections([]string{"Good Salary", "Good Salary"}, types.PriorityOptions)
		assert.Error(t, err)
	})

	t.Run("集合外的选项被拒绝", func(t *testing.T) {
		err := validateSelections([]string{"Astronaut Training"}, types.StreamOptions)
		assert.Error(t, err)
	})
}

func TestNewFamilyCode(t *testing.T) {
	codeRe := regexp.MustCompile(`^[0-9A-F]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		code := newFamilyCode()
		assert.Regexp(t, codeRe, code)
		seen[code] = struct{}{}
	}
	// 20次生成撞出同一个码的概率可以忽略
	assert.Greater(t, len(seen), 1)
}

func TestSetupFromRecord(t *testing.T) {
	record := &models.AssessmentSession{
		SessionID:      "s-1",
		City:           "Pune",
		State:          "Maharashtra",
		Language:       "Hindi",
		StreamsJSON:    datatypes.JSON(`["Arts/Humanities"]`),
		PrioritiesJSON: datatypes.JSON(`["Good Salary","Live near family"]`),
	}

	setup := setupFromRecord(record)
	assert.Equal(t, "Pune", setup.City)
	assert.Equal(t, "Maharashtra", setup.State)
	assert.Equal(t, "Hindi", setup.Language)
	assert.Equal(t, []string{"Arts/Humanities"}, setup.Streams)
	assert.Equal(t, []string{"Good Salary", "Live near family"}, setup.Priorities)
}

func TestSetupFromRecordEmptyJSON(t *testing.T) {
	setup := setupFromRecord(&models.AssessmentSession{SessionID: "s-2", City: "Nagpur"})
	assert.Equal(t, "Nagpur", setup.City)
	assert.Empty(t, setup.Streams)
	assert.Empty(t, setup.Priorities)
}

func newTestGuidanceImpl(components Components) *guidanceServiceImpl {
	logger := testLogger()
	return &guidanceServiceImpl{
		components: components,
		config:     &config.Config{},
		logger:     &logger,
		live:       make(map[string]*liveSession),
	}
}

func TestBuildLiveSessionStudentAssessmentMode(t *testing.T) {
	gs := newTestGuidanceImpl(Components{StudentModel: newStubChatModel()})

	ls, err := gs.buildLiveSession(&models.AssessmentSession{
		SessionID:      "s-3",
		AssessmentType: string(types.AssessmentStudent),
		Stage:          string(types.StageChat),
		City:           "Pune",
		Language:       "English",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.AssessmentMode, ls.session.Mode())
}

func TestBuildLiveSessionPostReportMode(t *testing.T) {
	gs := newTestGuidanceImpl(Components{StudentModel: newStubChatModel()})

	report := &types.CareerReport{
		RecommendedCareers: []types.CareerRecommendation{{Field: "Software Development", Reason: "Loves puzzles"}},
		Reasons:            []string{"Interest in technology"},
	}
	ls, err := gs.buildLiveSession(&models.AssessmentSession{
		SessionID:      "s-4",
		AssessmentType: string(types.AssessmentStudent),
		Stage:          string(types.StagePostReport),
		City:           "Pune",
		Language:       "English",
	}, report)
	require.NoError(t, err)
	assert.Equal(t, types.PostReportMode, ls.session.Mode())
}

func TestBuildLiveSessionParentModelMissing(t *testing.T) {
	// 只配了学生版模型时，家长版会话不能静默退化到学生版模型
	gs := newTestGuidanceImpl(Components{StudentModel: newStubChatModel()})

	_, err := gs.buildLiveSession(&models.AssessmentSession{
		SessionID:      "s-5",
		AssessmentType: string(types.AssessmentParent),
		Stage:          string(types.StageChat),
	}, nil)
	assert.ErrorIs(t, err, ErrModelNotInit)
}

func TestLiveSessionNoticeDrain(t *testing.T) {
	ls := &liveSession{}
	ls.appendNotice("first")
	ls.appendNotice("second")

	drained := ls.drainNotices()
	assert.Equal(t, []string{"first", "second"}, drained)
	assert.Empty(t, ls.drainNotices())
}
