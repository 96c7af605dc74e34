package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

const runsTable = "runs"

var runColumns = []string{
	"id", "started_at", "finished_at", "types", "target", "accepted",
	"rejected", "calls", "failed", "scheduled", "complete", "per_type",
}

type runRepo struct {
	drv *entsql.Driver
}

func (r *runRepo) SaveRun(ctx context.Context, run RunSummary) error {
	perType, err := json.Marshal(run.PerType)
	if err != nil {
		return fmt.Errorf("encode per-type counts: %w", err)
	}
	if run.PerType == nil {
		perType = []byte("{}")
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(runsTable).
		Columns(runColumns...).
		Values(
			run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
			strings.Join(run.Types, ","), run.Target, run.Accepted, run.Rejected,
			run.Calls, run.Failed, run.Scheduled, run.Complete, string(perType),
		).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *runRepo) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	b := entsql.Dialect(dialect.SQLite)
	sel := b.Select(runColumns...).
		From(b.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			run               RunSummary
			started, finished int64
			types, perType    string
		)
		err := rows.Scan(
			&run.ID, &started, &finished, &types, &run.Target, &run.Accepted,
			&run.Rejected, &run.Calls, &run.Failed, &run.Scheduled, &run.Complete, &perType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(finished)
		if types != "" {
			run.Types = strings.Split(types, ",")
		}
		if err := json.Unmarshal([]byte(perType), &run.PerType); err != nil {
			return nil, fmt.Errorf("decode per-type counts for run %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
