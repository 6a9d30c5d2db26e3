package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// InsertAnalysis persists one pipeline result. Repeated inserts for the
// same (query_id, code) replace the earlier row, which makes retried
// tasks idempotent at the storage layer.
func (db *DB) InsertAnalysis(ctx context.Context, r *domain.AnalysisResult) error {
	dashboard, err := json.Marshal(r.Dashboard)
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	news, err := json.Marshal(r.NewsItems)
	if err != nil {
		return fmt.Errorf("marshal news items: %w", err)
	}
	sources, err := json.Marshal(r.DataSources)
	if err != nil {
		return fmt.Errorf("marshal data sources: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results (
			query_id, code, name, market, generated_at,
			sentiment_score, operation_advice, decision_type, trend_prediction, confidence,
			narrative, dashboard, news_items, data_sources,
			search_performed, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.QueryID, r.Symbol.Code, r.Name, string(r.Symbol.Market), r.GeneratedAt,
		r.SentimentScore, r.OperationAdvice, string(r.DecisionType), r.TrendPrediction, r.Confidence,
		r.Narrative, string(dashboard), string(news), string(sources),
		boolToInt(r.SearchPerformed), boolToInt(r.Success), r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetHistory returns persisted analysis results, newest first, filtered
// by code and/or decision when non-empty. limit <= 0 defaults to 50.
func (db *DB) GetHistory(ctx context.Context, code, decision string, limit int) ([]domain.AnalysisResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT query_id, code, name, market, generated_at,
		       sentiment_score, operation_advice, decision_type, trend_prediction, confidence,
		       narrative, dashboard, news_items, data_sources,
		       search_performed, success, error_message
		FROM analysis_results WHERE 1=1`
	args := []interface{}{}
	if code != "" {
		query += " AND code = ?"
		args = append(args, code)
	}
	if decision != "" {
		query += " AND decision_type = ?"
		args = append(args, decision)
	}
	query += " ORDER BY generated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		r, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAnalysis(rows *sql.Rows) (domain.AnalysisResult, error) {
	var (
		r                        domain.AnalysisResult
		market                   string
		decision                 string
		dashboard, news, sources string
		searchPerformed, success int
	)
	err := rows.Scan(
		&r.QueryID, &r.Symbol.Code, &r.Name, &market, &r.GeneratedAt,
		&r.SentimentScore, &r.OperationAdvice, &decision, &r.TrendPrediction, &r.Confidence,
		&r.Narrative, &dashboard, &news, &sources,
		&searchPerformed, &success, &r.ErrorMessage,
	)
	if err != nil {
		return r, fmt.Errorf("scan analysis row: %w", err)
	}

	r.Symbol.Market = domain.Market(market)
	r.DecisionType = domain.DecisionType(decision)
	r.SearchPerformed = searchPerformed != 0
	r.Success = success != 0
	if err := json.Unmarshal([]byte(dashboard), &r.Dashboard); err != nil {
		return r, fmt.Errorf("unmarshal dashboard: %w", err)
	}
	if err := json.Unmarshal([]byte(news), &r.NewsItems); err != nil {
		return r, fmt.Errorf("unmarshal news items: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &r.DataSources); err != nil {
		return r, fmt.Errorf("unmarshal data sources: %w", err)
	}
	return r, nil
}

// UpsertTaskRecord mirrors one ledger entry into the durable tasks table.
// The in-memory ledger stays authoritative while the process lives; this
// row is what survives a restart.
func (db *DB) UpsertTaskRecord(ctx context.Context, t *domain.Task) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (task_id, code, report_type, status, submitted_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol.Code, t.ReportType, string(t.Status), t.SubmittedAt, t.FinishedAt, t.Err,
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// InsertMarketReview stores one daily market review body keyed by its
// local calendar date; rerunning the review on the same day replaces it.
func (db *DB) InsertMarketReview(ctx context.Context, asOf time.Time, body string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO market_reviews (review_date, body, created_at)
		VALUES (?, ?, ?)`,
		asOf.Format("2006-01-02"), body, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert market review: %w", err)
	}
	return nil
}

// SaveContextSnapshot stores an opaque encoded payload (the full gathered
// context of one run) keyed by query_id.
func (db *DB) SaveContextSnapshot(ctx context.Context, queryID string, payload []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO context_snapshots (query_id, payload, created_at)
		VALUES (?, ?, ?)`,
		queryID, payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save context snapshot: %w", err)
	}
	return nil
}

// GetContextSnapshot loads a previously saved snapshot payload, or nil
// when none exists for queryID.
func (db *DB) GetContextSnapshot(ctx context.Context, queryID string) ([]byte, error) {
	var payload []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT payload FROM context_snapshots WHERE query_id = ?`, queryID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context snapshot: %w", err)
	}
	return payload, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
