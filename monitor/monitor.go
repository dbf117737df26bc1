// Package monitor is the observability read path for game servers:
// rolling health samples, threshold flags and trend aggregates. It
// never mutates server status.
package monitor

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/records"
)

// Thresholds flag a sample as unhealthy.
type Thresholds struct {
	FPSMin   float64 `json:"fps_min"`
	CPUMax   float64 `json:"cpu_max"`
	RAMMax   float64 `json:"ram_max"`
	DiskWarn float64 `json:"disk_warn"`
}

// DefaultThresholds per the panel defaults.
var DefaultThresholds = Thresholds{
	FPSMin:   30,
	CPUMax:   80,
	RAMMax:   85,
	DiskWarn: 85,
}

// TrendReport summarizes a window of samples.
type TrendReport struct {
	WindowHours int      `json:"window_hours"`
	Samples     int      `json:"samples"`
	AvgFPS      float64  `json:"avg_fps"`
	MinFPS      float64  `json:"min_fps"`
	MaxFPS      float64  `json:"max_fps"`
	AvgCPU      float64  `json:"avg_cpu"`
	MinCPU      float64  `json:"min_cpu"`
	MaxCPU      float64  `json:"max_cpu"`
	AvgRAM      float64  `json:"avg_ram"`
	MinRAM      float64  `json:"min_ram"`
	MaxRAM      float64  `json:"max_ram"`
	AvgPlayers  float64  `json:"avg_players"`
	HealthScore float64  `json:"health_score"`
	Trend       string   `json:"trend"` // improving | stable | declining
	Issues      []string `json:"issues,omitempty"`
	Degraded    bool     `json:"degraded"`
}

// latest keeps the newest sample per server for the dashboard's hot
// read path.
var latest = gocache.New(10*time.Minute, 30*time.Minute)

// RecordServerHealth appends a sample, flags threshold violations and
// trims the rolling buffer.
func RecordServerHealth(serverUUID string, report common.HealthReport, thresholds Thresholds) (models.HealthRecord, error) {
	issues := detectIssues(report, thresholds)

	rec := models.HealthRecord{
		ServerUUID: serverUUID,
		Time:       time.Now(),
		FPS:        report.FPS,
		Players:    report.Players,
		MaxPlayers: report.MaxPlayers,
		CPUUsage:   report.CPUUsage,
		RAMUsage:   report.RAMUsage,
		DiskUsage:  report.DiskUsage,
		Healthy:    len(issues) == 0,
	}
	if len(issues) > 0 {
		data, err := json.Marshal(issues)
		if err != nil {
			return models.HealthRecord{}, err
		}
		rec.Issues = string(data)
	}

	if err := records.RecordOne(rec); err != nil {
		return models.HealthRecord{}, err
	}
	latest.Set(serverUUID, rec, gocache.DefaultExpiration)
	return rec, nil
}

func detectIssues(report common.HealthReport, t Thresholds) []string {
	var issues []string
	if report.FPS < t.FPSMin {
		issues = append(issues, fmt.Sprintf("low fps: %.0f (min %.0f)", report.FPS, t.FPSMin))
	}
	if report.CPUUsage > t.CPUMax {
		issues = append(issues, fmt.Sprintf("high cpu: %.0f%% (max %.0f%%)", report.CPUUsage, t.CPUMax))
	}
	if report.RAMUsage > t.RAMMax {
		issues = append(issues, fmt.Sprintf("high ram: %.0f%% (max %.0f%%)", report.RAMUsage, t.RAMMax))
	}
	if report.DiskUsage > t.DiskWarn {
		issues = append(issues, fmt.Sprintf("disk filling: %.0f%% (warn %.0f%%)", report.DiskUsage, t.DiskWarn))
	}
	if report.MaxPlayers > 0 && float64(report.Players) > float64(report.MaxPlayers)*0.95 {
		issues = append(issues, fmt.Sprintf("server nearly full: %d/%d players", report.Players, report.MaxPlayers))
	}
	return issues
}

// LatestServerHealth returns the newest sample, from cache when warm.
func LatestServerHealth(serverUUID string) (models.HealthRecord, error) {
	if cached, ok := latest.Get(serverUUID); ok {
		return cached.(models.HealthRecord), nil
	}
	recs, err := records.GetLatestRecord(serverUUID)
	if err != nil {
		return models.HealthRecord{}, err
	}
	if len(recs) == 0 {
		return models.HealthRecord{}, common.NotFoundf("no health samples for server %s", serverUUID)
	}
	latest.Set(serverUUID, recs[0], gocache.DefaultExpiration)
	return recs[0], nil
}

// AnalyzeServerHealthTrends aggregates the window and flags
// degradation when averages cross the thresholds.
func AnalyzeServerHealthTrends(serverUUID string, windowHours int, thresholds Thresholds) (TrendReport, error) {
	if windowHours <= 0 {
		windowHours = 1
	}
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	recs, err := records.GetRecordsSince(serverUUID, since)
	if err != nil {
		return TrendReport{}, err
	}
	if len(recs) == 0 {
		return TrendReport{}, common.NotFoundf("no health samples for server %s in the last %dh", serverUUID, windowHours)
	}

	report := TrendReport{
		WindowHours: windowHours,
		Samples:     len(recs),
		MinFPS:      math.MaxFloat64,
		MinCPU:      math.MaxFloat64,
		MinRAM:      math.MaxFloat64,
	}

	healthy := 0
	issueSet := map[string]struct{}{}
	fpsSeries := make([]float64, 0, len(recs))
	for _, rec := range recs {
		report.AvgFPS += rec.FPS
		report.AvgCPU += rec.CPUUsage
		report.AvgRAM += rec.RAMUsage
		report.AvgPlayers += float64(rec.Players)
		report.MinFPS = math.Min(report.MinFPS, rec.FPS)
		report.MaxFPS = math.Max(report.MaxFPS, rec.FPS)
		report.MinCPU = math.Min(report.MinCPU, rec.CPUUsage)
		report.MaxCPU = math.Max(report.MaxCPU, rec.CPUUsage)
		report.MinRAM = math.Min(report.MinRAM, rec.RAMUsage)
		report.MaxRAM = math.Max(report.MaxRAM, rec.RAMUsage)
		fpsSeries = append(fpsSeries, rec.FPS)
		if rec.Healthy {
			healthy++
		} else if rec.Issues != "" {
			var issues []string
			if err := json.Unmarshal([]byte(rec.Issues), &issues); err == nil {
				for _, issue := range issues {
					issueSet[issue] = struct{}{}
				}
			}
		}
	}

	n := float64(len(recs))
	report.AvgFPS /= n
	report.AvgCPU /= n
	report.AvgRAM /= n
	report.AvgPlayers /= n
	report.HealthScore = float64(healthy) / n * 100
	report.Trend = calculateTrend(fpsSeries)
	report.Degraded = report.AvgCPU > thresholds.CPUMax || report.AvgRAM > thresholds.RAMMax

	for issue := range issueSet {
		report.Issues = append(report.Issues, issue)
		if len(report.Issues) >= 5 {
			break
		}
	}
	return report, nil
}

// calculateTrend compares the halves of the fps series: more than 5%
// movement either way counts as a trend.
func calculateTrend(values []float64) string {
	if len(values) < 2 {
		return "stable"
	}
	half := len(values) / 2
	var first, second float64
	for _, v := range values[:half] {
		first += v
	}
	for _, v := range values[half:] {
		second += v
	}
	first /= float64(half)
	second /= float64(len(values) - half)
	if first == 0 {
		return "stable"
	}
	diff := (second - first) / first * 100
	switch {
	case diff > 5:
		return "improving"
	case diff < -5:
		return "declining"
	default:
		return "stable"
	}
}
