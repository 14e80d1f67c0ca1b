package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("A"))
	assert.Equal(t, "张*", MaskPII("张三"))
	assert.Equal(t, "王*明", MaskPII("王小明"))

	masked := MaskPII("student@example.com")
	assert.True(t, strings.HasPrefix(masked, "st"))
	assert.True(t, strings.HasSuffix(masked, "om"))
	assert.NotContains(t, masked, "example")
}

func TestSafeAttributeValueMasksSensitiveNames(t *testing.T) {
	// 属性名包含敏感关键字时，值必须被掩码
	masked := SafeAttributeValue("user.email", "student@example.com", DefaultMaxLength)
	assert.NotContains(t, masked, "example")

	// 普通属性名只做截断
	plain := SafeAttributeValue("db.statement", "SELECT 1", DefaultMaxLength)
	assert.Equal(t, "SELECT 1", plain)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))

	long := strings.Repeat("a", 50) + strings.Repeat("b", 50)
	truncated := TruncateString(long, 21)
	assert.Contains(t, truncated, "...")
	assert.LessOrEqual(t, len(truncated), 21)
}

func TestSafeNarrativeContent(t *testing.T) {
	narrative := strings.Repeat("market analysis ", 50)
	safe := SafeNarrativeContent(narrative)
	assert.LessOrEqual(t, len(safe), MaxNarrativeLength)
}
