package usagelog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one recorded completion request. Cost is stored as its decimal
// string form so the journal stays exact.
type Entry struct {
	ID               int64
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          decimal.Decimal
	Duration         time.Duration
	CreatedAt        time.Time
}

func (s *Store) Insert(ctx context.Context, e Entry) error {
	q := s.sql.Insert("usage_log").
		Columns("model", "prompt_tokens", "completion_tokens", "cost_usd", "duration_ms").
		Values(e.Model, e.PromptTokens, e.CompletionTokens, e.CostUSD.String(), e.Duration.Milliseconds())

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build usage insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	q := s.sql.Select("id", "model", "prompt_tokens", "completion_tokens", "cost_usd", "duration_ms", "created_at").
		From("usage_log").
		OrderBy("id DESC").
		Limit(uint64(n))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent usage query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent usage: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var cost string
		var durMs int64
		if err := rows.Scan(&e.ID, &e.Model, &e.PromptTokens, &e.CompletionTokens, &cost, &durMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage entry: %w", err)
		}
		c, err := decimal.NewFromString(cost)
		if err != nil {
			return nil, fmt.Errorf("parse stored cost %q: %w", cost, err)
		}
		e.CostUSD = c
		e.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Totals aggregates the whole journal.
type Totals struct {
	Requests         int64
	PromptTokens     int64
	CompletionTokens int64
	CostUSD          decimal.Decimal
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	q := s.sql.Select("prompt_tokens", "completion_tokens", "cost_usd").From("usage_log")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Totals{}, fmt.Errorf("build usage totals query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return Totals{}, fmt.Errorf("query usage totals: %w", err)
	}
	defer rows.Close()

	t := Totals{CostUSD: decimal.Zero}
	for rows.Next() {
		var cost string
		var in, out int64
		if err := rows.Scan(&in, &out, &cost); err != nil {
			return Totals{}, fmt.Errorf("scan usage totals row: %w", err)
		}
		c, err := decimal.NewFromString(cost)
		if err != nil {
			return Totals{}, fmt.Errorf("parse stored cost %q: %w", cost, err)
		}
		t.Requests++
		t.PromptTokens += in
		t.CompletionTokens += out
		t.CostUSD = t.CostUSD.Add(c)
	}
	return t, rows.Err()
}
