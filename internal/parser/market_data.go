package parser

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"career-agent-go/internal/types"
)

// sectorMapping 固定的行业键到展示名称的映射，迭代顺序固定
var sectorMappings = []struct {
	Key   string
	Label string
}{
	{"IT", "Information Technology"},
	{"Healthcare", "Healthcare & Medicine"},
	{"Engineering", "Engineering"},
	{"Government", "Government Services"},
	{"Finance", "Finance & Banking"},
}

// 默认值哨兵：一条记录的增长率、薪资标签、岗位数全部等于这些值时视为"全默认"
const (
	sentinelGrowthRate  = 10.0
	sentinelSalaryLabel = "₹5-15 LPA"
	sentinelJobCountLow = 1000
	sentinelJobCountHi  = 3000
)

// fallbackSource 静态兜底数据集的来源标记
const fallbackSource = "Baseline market analysis"

var (
	loosePercentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	looseSalaryRe  = regexp.MustCompile(`₹(\d+)-(\d+)`)
	looseJobRe     = regexp.MustCompile(`(\d{3,})`)
)

// MarketDataExtractor 从松散格式的市场调研叙述中恢复各行业的
// 增长率/薪资/岗位数记录
// 两层策略：严格模式匹配失败后退化为窗口内的宽松启发式，
// 最终整体不可信时回退到静态兜底数据集
type MarketDataExtractor struct {
	// 宽松层缺项时的随机默认值来源，注入以便测试确定化
	rng      *rand.Rand
	logger   *log.Logger
	sectorRe map[string]*regexp.Regexp
}

// MarketExtractorOption 市场数据提取器的配置选项
type MarketExtractorOption func(*MarketDataExtractor)

// WithRandSource 设置随机默认值的来源
// 测试中传入固定种子即可得到可复现的退化输出
func WithRandSource(src rand.Source) MarketExtractorOption {
	return func(e *MarketDataExtractor) {
		e.rng = rand.New(src)
	}
}

// WithMarketLogger 设置提取器使用的日志记录器
func WithMarketLogger(logger *log.Logger) MarketExtractorOption {
	return func(e *MarketDataExtractor) {
		e.logger = logger
	}
}

// NewMarketDataExtractor 创建市场数据提取器
func NewMarketDataExtractor(options ...MarketExtractorOption) *MarketDataExtractor {
	e := &MarketDataExtractor{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   log.New(io.Discard, "", 0),
		sectorRe: make(map[string]*regexp.Regexp, len(sectorMappings)),
	}
	for _, opt := range options {
		opt(e)
	}
	// 严格模式：行业键 … Growth Rate: P% … Salary Range: ₹X-Y … Job Openings: N
	for _, m := range sectorMappings {
		e.sectorRe[m.Key] = regexp.MustCompile(
			`(?is)` + regexp.QuoteMeta(m.Key) +
				`.*?Growth Rate[:\s]*(\d+(?:\.\d+)?)%` +
				`.*?Salary Range[:\s]*₹(\d+)-(\d+)` +
				`.*?Job Openings[:\s]*(\d+(?:,\d+)?)`)
	}
	return e
}

// Extract 从叙述文本中提取各行业的市场数据
// 结果集为空，或所有记录都命中全默认哨兵时，返回静态兜底数据集
// 退化只记日志，不作为错误浮出
func (e *MarketDataExtractor) Extract(narrative string, city string) []types.MarketDataPoint {
	points := make([]types.MarketDataPoint, 0, len(sectorMappings))
	today := time.Now().Format("2006-01-02")

	for _, m := range sectorMappings {
		if p, ok := e.extractStrict(narrative, m.Key, m.Label, city, today); ok {
			points = append(points, p)
			continue
		}
		if p, ok := e.extractLoose(narrative, m.Key, m.Label, city, today); ok {
			e.logger.Printf("[MarketDataExtractor] 行业 %s 严格匹配失败, 采用宽松提取", m.Key)
			points = append(points, p)
		}
	}

	if len(points) == 0 {
		e.logger.Printf("[MarketDataExtractor] 叙述中未提取到任何行业数据, 使用静态兜底数据集")
		return StaticFallbackDataset(city)
	}
	if !hasVariedData(points) {
		e.logger.Printf("[MarketDataExtractor] 提取结果全部命中默认值哨兵, 视为提取失败, 使用静态兜底数据集")
		return StaticFallbackDataset(city)
	}
	return points
}

// extractStrict 严格模式提取
func (e *MarketDataExtractor) extractStrict(narrative, key, label, city, today string) (types.MarketDataPoint, bool) {
	match := e.sectorRe[key].FindStringSubmatch(narrative)
	if match == nil {
		return types.MarketDataPoint{}, false
	}

	growth, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return types.MarketDataPoint{}, false
	}
	salaryLow, _ := strconv.Atoi(match[2])
	salaryHigh, _ := strconv.Atoi(match[3])
	jobCount, err := strconv.Atoi(strings.ReplaceAll(match[4], ",", ""))
	if err != nil {
		return types.MarketDataPoint{}, false
	}

	return types.MarketDataPoint{
		Sector:      label,
		DemandLevel: deriveDemandLevel(growth),
		GrowthRate:  growth,
		AvgSalary:   fmt.Sprintf("₹%d-%d LPA", salaryLow, salaryHigh),
		JobCount:    jobCount,
		Trend:       deriveTrend(growth),
		Location:    city,
		Source:      "Live market data",
		LastUpdated: today,
	}, true
}

// extractLoose 宽松模式提取
// 行业键出现在叙述中时，在其首次出现位置前100后300字符的窗口里
// 独立搜索百分比、₹X-Y薪资段和3位以上整数；缺项用随机默认值补齐
func (e *MarketDataExtractor) extractLoose(narrative, key, label, city, today string) (types.MarketDataPoint, bool) {
	lower := strings.ToLower(narrative)
	idx := strings.Index(lower, strings.ToLower(key))
	if idx == -1 {
		return types.MarketDataPoint{}, false
	}

	start := idx - 100
	if start < 0 {
		start = 0
	}
	end := idx + 300
	if end > len(narrative) {
		end = len(narrative)
	}
	window := narrative[start:end]

	percentMatch := loosePercentRe.FindStringSubmatch(window)
	salaryMatch := looseSalaryRe.FindStringSubmatch(window)
	jobMatch := looseJobRe.FindStringSubmatch(window)
	if percentMatch == nil && salaryMatch == nil && jobMatch == nil {
		return types.MarketDataPoint{}, false
	}

	growth := 8 + e.rng.Float64()*10
	if percentMatch != nil {
		growth, _ = strconv.ParseFloat(percentMatch[1], 64)
	}
	var salaryLow, salaryHigh int
	if salaryMatch != nil {
		salaryLow, _ = strconv.Atoi(salaryMatch[1])
		salaryHigh, _ = strconv.Atoi(salaryMatch[2])
	} else {
		salaryLow = 4 + e.rng.Intn(6)
		salaryHigh = salaryLow + 8 + e.rng.Intn(12)
	}
	jobCount := 500 + e.rng.Intn(2000)
	if jobMatch != nil {
		jobCount, _ = strconv.Atoi(jobMatch[1])
	}

	growth = math.Round(growth*10) / 10
	return types.MarketDataPoint{
		Sector:      label,
		DemandLevel: deriveDemandLevel(growth),
		GrowthRate:  growth,
		AvgSalary:   fmt.Sprintf("₹%d-%d LPA", salaryLow, salaryHigh),
		JobCount:    jobCount,
		Trend:       deriveTrend(growth),
		Location:    city,
		Source:      "Extracted market estimate",
		LastUpdated: today,
	}, true
}

// deriveDemandLevel 增长率到需求等级的固定阈值推导，严格比较
func deriveDemandLevel(growthRate float64) types.DemandLevel {
	switch {
	case growthRate > 12:
		return types.DemandHigh
	case growthRate < 6:
		return types.DemandLow
	default:
		return types.DemandMedium
	}
}

// deriveTrend 增长率到趋势的固定阈值推导，严格比较
func deriveTrend(growthRate float64) types.MarketTrend {
	switch {
	case growthRate > 8:
		return types.TrendRising
	case growthRate < 4:
		return types.TrendDeclining
	default:
		return types.TrendStable
	}
}

// hasVariedData 判定结果集是否包含至少一条偏离全默认哨兵的记录
func hasVariedData(points []types.MarketDataPoint) bool {
	for _, p := range points {
		if p.GrowthRate != sentinelGrowthRate ||
			p.AvgSalary != sentinelSalaryLabel ||
			p.JobCount < sentinelJobCountLow || p.JobCount > sentinelJobCountHi {
			return true
		}
	}
	return false
}

// FromLiveExtraction 判断数据集是否来自实时叙述提取
// 任一记录带静态兜底来源标记时整体视为兜底数据
func FromLiveExtraction(points []types.MarketDataPoint) bool {
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		if p.Source == fallbackSource {
			return false
		}
	}
	return true
}

// StaticFallbackDataset 静态兜底数据集，五个行业的典型基线数值
// 各字段为固定业务常量，不按阈值重新推导
func StaticFallbackDataset(city string) []types.MarketDataPoint {
	today := time.Now().Format("2006-01-02")
	return []types.MarketDataPoint{
		{
			Sector:      "Information Technology",
			DemandLevel: types.DemandHigh,
			GrowthRate:  15.2,
			AvgSalary:   "₹8-25 LPA",
			JobCount:    2847,
			Trend:       types.TrendRising,
			Location:    city,
			Source:      fallbackSource,
			LastUpdated: today,
		},
		{
			Sector:      "Healthcare & Medicine",
			DemandLevel: types.DemandHigh,
			GrowthRate:  12.8,
			AvgSalary:   "₹6-20 LPA",
			JobCount:    1923,
			Trend:       types.TrendRising,
			Location:    city,
			Source:      fallbackSource,
			LastUpdated: today,
		},
		{
			Sector:      "Engineering",
			DemandLevel: types.DemandMedium,
			GrowthRate:  8.5,
			AvgSalary:   "₹5-18 LPA",
			JobCount:    1456,
			Trend:       types.TrendStable,
			Location:    city,
			Source:      fallbackSource,
			LastUpdated: today,
		},
		{
			Sector:      "Government Services",
			DemandLevel: types.DemandMedium,
			GrowthRate:  4.2,
			AvgSalary:   "₹4-12 LPA",
			JobCount:    892,
			Trend:       types.TrendStable,
			Location:    city,
			Source:      fallbackSource,
			LastUpdated: today,
		},
		{
			Sector:      "Finance & Banking",
			DemandLevel: types.DemandMedium,
			GrowthRate:  6.7,
			AvgSalary:   "₹5-15 LPA",
			JobCount:    734,
			Trend:       types.TrendRising,
			Location:    city,
			Source:      fallbackSource,
			LastUpdated: today,
		},
	}
}
