package analytics

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/coordcard/internal/db"
)

// DB is the interface for database queries used by analytics.
type DB interface {
	Conn() *sql.DB
	Rebind(query string) string
}

// timestamp formats accepted by ParseSince
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSince turns a --since value into the created_at lower bound, in
// db.TimeLayout. It
// accepts a Go duration ("36h"), a day count ("7d") or a timestamp. An empty
// string means no bound.
func ParseSince(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return db.FormatTime(now.AddDate(0, 0, -n)), nil
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return db.FormatTime(now.Add(-d)), nil
	}
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return db.FormatTime(t), nil
		}
	}
	return "", fmt.Errorf("unrecognized --since value %q (want a duration like 24h, a day count like 7d, or a timestamp)", s)
}

// whereSince appends a created_at bound to a query that has no WHERE clause yet.
func whereSince(query, since string, args []interface{}) (string, []interface{}) {
	if since == "" {
		return query, args
	}
	return query + ` WHERE created_at >= ?`, append(args, since)
}

// ActionCount holds how often an action was chosen.
type ActionCount struct {
	Action string  `json:"action"`
	Count  int     `json:"count"`
	Pct    float64 `json:"pct"`
}

// QueryActionCounts returns the distribution of chosen actions, most frequent first.
func QueryActionCounts(database DB, since string) ([]ActionCount, error) {
	query, args := whereSince(`SELECT action, COUNT(*) FROM decisions`, since, nil)
	query += ` GROUP BY action`

	rows, err := database.Conn().Query(database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query action counts: %w", err)
	}
	defer rows.Close()

	var results []ActionCount
	total := 0
	for rows.Next() {
		var ac ActionCount
		if err := rows.Scan(&ac.Action, &ac.Count); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		total += ac.Count
		results = append(results, ac)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Pct = pct(results[i].Count, total)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Action < results[j].Action
	})
	return results, nil
}

// TriggerRate holds how often a trigger fired and the average level it left
// the conversation at.
type TriggerRate struct {
	Trigger  string  `json:"trigger"`
	Count    int     `json:"count"`
	Pct      float64 `json:"pct"`
	AvgLevel float64 `json:"avg_level"`
}

// QueryTriggerRates returns per-trigger counts, sorted by trigger name.
func QueryTriggerRates(database DB, since string) ([]TriggerRate, error) {
	query, args := whereSince(`SELECT trigger_fired, level FROM decisions`, since, nil)

	rows, err := database.Conn().Query(database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query trigger rates: %w", err)
	}
	defer rows.Close()

	levels := make(map[string][]float64)
	total := 0
	for rows.Next() {
		var trigger string
		var level int
		if err := rows.Scan(&trigger, &level); err != nil {
			return nil, fmt.Errorf("scan trigger rate: %w", err)
		}
		levels[trigger] = append(levels[trigger], float64(level))
		total++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []TriggerRate
	for trigger, lv := range levels {
		results = append(results, TriggerRate{
			Trigger:  trigger,
			Count:    len(lv),
			Pct:      pct(len(lv), total),
			AvgLevel: avg(lv),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Trigger < results[j].Trigger
	})
	return results, nil
}

// ConversationSummary aggregates the decisions of one conversation.
type ConversationSummary struct {
	Conversation string  `json:"conversation"`
	Decisions    int     `json:"decisions"`
	RepairPct    float64 `json:"repair_pct"`
	MaxLevel     int     `json:"max_level"`
	AvgRhoSum    float64 `json:"avg_rho_sum"`
	P50RhoSum    float64 `json:"p50_rho_sum"`
	P95RhoSum    float64 `json:"p95_rho_sum"`
	LastAt       string  `json:"last_at"`
}

// QueryConversationSummaries returns one summary per conversation, most
// recently active first. Any action other than continue counts as repair.
func QueryConversationSummaries(database DB, since string) ([]ConversationSummary, error) {
	query, args := whereSince(`SELECT conversation, action, level, rho_sum, created_at FROM decisions`, since, nil)
	query += ` ORDER BY created_at`

	rows, err := database.Conn().Query(database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation summaries: %w", err)
	}
	defer rows.Close()

	type convInfo struct {
		repairs  int
		maxLevel int
		sums     []float64
		lastAt   string
	}
	convs := make(map[string]*convInfo)
	for rows.Next() {
		var conv, action, createdAt string
		var level, rhoSum int
		if err := rows.Scan(&conv, &action, &level, &rhoSum, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		info, ok := convs[conv]
		if !ok {
			info = &convInfo{}
			convs[conv] = info
		}
		if action != "continue" {
			info.repairs++
		}
		info.maxLevel = max(info.maxLevel, level)
		info.sums = append(info.sums, float64(rhoSum))
		info.lastAt = createdAt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var results []ConversationSummary
	for conv, info := range convs {
		sorted := append([]float64(nil), info.sums...)
		sort.Float64s(sorted)
		results = append(results, ConversationSummary{
			Conversation: conv,
			Decisions:    len(info.sums),
			RepairPct:    pct(info.repairs, len(info.sums)),
			MaxLevel:     info.maxLevel,
			AvgRhoSum:    avg(info.sums),
			P50RhoSum:    percentile(sorted, 50),
			P95RhoSum:    percentile(sorted, 95),
			LastAt:       info.lastAt,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].LastAt != results[j].LastAt {
			return results[i].LastAt > results[j].LastAt
		}
		return results[i].Conversation < results[j].Conversation
	})
	return results, nil
}

// PeakLevelDist holds how many conversations peaked at a given escalation level.
type PeakLevelDist struct {
	Level         int     `json:"level"`
	Conversations int     `json:"conversations"`
	Pct           float64 `json:"pct"`
}

// QueryPeakLevels returns the distribution of per-conversation peak levels,
// ordered by level.
func QueryPeakLevels(database DB, since string) ([]PeakLevelDist, error) {
	inner, args := whereSince(`SELECT conversation, MAX(level) AS peak FROM decisions`, since, nil)
	inner += ` GROUP BY conversation`
	query := `SELECT peak, COUNT(*) FROM (` + inner + `) sub GROUP BY peak ORDER BY peak`

	rows, err := database.Conn().Query(database.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query peak levels: %w", err)
	}
	defer rows.Close()

	var results []PeakLevelDist
	total := 0
	for rows.Next() {
		var d PeakLevelDist
		if err := rows.Scan(&d.Level, &d.Conversations); err != nil {
			return nil, fmt.Errorf("scan peak level: %w", err)
		}
		total += d.Conversations
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Pct = pct(results[i].Conversations, total)
	}
	return results, nil
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
