// Package postgres provides the durable store for summaries, streaks, and the
// applied-event ledger.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/progress/internal/domain"
	"example.com/progress/internal/observability"
	"example.com/progress/internal/outbox"
)

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies it
// in unit tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements domain.SummaryStore, domain.StreakStore, and
// domain.ProfileSource against Postgres.
type Repository struct {
	db DB
}

// NewRepository constructs a Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Profile reads the owner's timezone and focus goal. Returns nil when the
// user is unknown.
func (r *Repository) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `SELECT user_id, timezone, daily_focus_goal FROM users WHERE user_id=$1`

	var profile domain.Profile
	row := r.db.QueryRow(ctx, query, userID)
	if err := row.Scan(&profile.UserID, &profile.Timezone, &profile.DailyFocusGoal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// ApplyEvent folds one event into the (user, date) summary row inside a single
// transaction. The applied_events insert acts as the idempotency ledger: a
// conflicting event id short-circuits the apply and returns the current row
// untouched. The additive ON CONFLICT merge is commutative, so concurrent
// applies for the same day linearize without explicit locking.
func (r *Repository) ApplyEvent(ctx context.Context, apply domain.SummaryApply) (domain.DailySummary, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.DailySummary{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const insertLedger = `INSERT INTO applied_events (event_id, user_id, activity_date)
        VALUES ($1,$2,$3) ON CONFLICT (event_id) DO NOTHING`

	var tag pgconn.CommandTag
	tag, err = tx.Exec(ctx, insertLedger, apply.EventID, apply.UserID, apply.Date.Time())
	if err != nil {
		return domain.DailySummary{}, false, err
	}

	if tag.RowsAffected() == 0 {
		summary, loadErr := scanSummary(tx.QueryRow(ctx,
			`SELECT user_id, activity_date, total_focus_minutes, completed_assignments, productivity_score, created_at, updated_at
             FROM daily_summaries WHERE user_id=$1 AND activity_date=$2`,
			apply.UserID, apply.Date.Time()))
		if loadErr != nil {
			if !errors.Is(loadErr, pgx.ErrNoRows) {
				err = loadErr
				return domain.DailySummary{}, false, err
			}
			// Ledger entry without a summary row: the summary was rebuilt
			// elsewhere. The replay is still a no-op.
			summary = domain.DailySummary{UserID: apply.UserID, Date: apply.Date}
		}
		if err = tx.Commit(ctx); err != nil {
			return domain.DailySummary{}, false, err
		}
		return summary, true, nil
	}

	const upsert = `INSERT INTO daily_summaries (user_id, activity_date, total_focus_minutes, completed_assignments, productivity_score, created_at, updated_at)
        VALUES ($1,$2,$3,$4,0,NOW(),NOW())
        ON CONFLICT (user_id, activity_date) DO UPDATE SET
            total_focus_minutes = daily_summaries.total_focus_minutes + EXCLUDED.total_focus_minutes,
            completed_assignments = daily_summaries.completed_assignments + EXCLUDED.completed_assignments,
            updated_at = NOW()
        RETURNING user_id, activity_date, total_focus_minutes, completed_assignments, productivity_score, created_at, updated_at`

	var summary domain.DailySummary
	summary, err = scanSummary(tx.QueryRow(ctx, upsert,
		apply.UserID, apply.Date.Time(), apply.FocusMinutes, apply.CompletedAssignments))
	if err != nil {
		return domain.DailySummary{}, false, err
	}

	summary.ProductivityScore = domain.Score(summary.TotalFocusMinutes, summary.CompletedAssignments, apply.DailyFocusGoal)
	if _, err = tx.Exec(ctx,
		`UPDATE daily_summaries SET productivity_score=$3 WHERE user_id=$1 AND activity_date=$2`,
		apply.UserID, apply.Date.Time(), summary.ProductivityScore); err != nil {
		return domain.DailySummary{}, false, err
	}

	if err = insertOutbox(ctx, tx, "summary.updated", apply.UserID, outbox.SummaryUpdated{
		UserID:               summary.UserID,
		ActivityDate:         summary.Date.String(),
		Kind:                 string(apply.Kind),
		TotalFocusMinutes:    summary.TotalFocusMinutes,
		CompletedAssignments: summary.CompletedAssignments,
		ProductivityScore:    summary.ProductivityScore,
		UpdatedAt:            summary.UpdatedAt,
	}, fmt.Sprintf("%s:%s", apply.EventID, "summary.updated")); err != nil {
		return domain.DailySummary{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.DailySummary{}, false, err
	}

	observability.RecordSummaryPersisted(summary.UpdatedAt)
	return summary, false, nil
}

// GetSummary fetches one summary row, nil when absent.
func (r *Repository) GetSummary(ctx context.Context, userID string, date domain.Date) (*domain.DailySummary, error) {
	summary, err := scanSummary(r.db.QueryRow(ctx,
		`SELECT user_id, activity_date, total_focus_minutes, completed_assignments, productivity_score, created_at, updated_at
         FROM daily_summaries WHERE user_id=$1 AND activity_date=$2`,
		userID, date.Time()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

type summaryRow struct {
	UserID               string    `db:"user_id"`
	ActivityDate         time.Time `db:"activity_date"`
	TotalFocusMinutes    int       `db:"total_focus_minutes"`
	CompletedAssignments int       `db:"completed_assignments"`
	ProductivityScore    float64   `db:"productivity_score"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// ListSummaries returns the user's summaries, newest first, bounded by the
// optional date range.
func (r *Repository) ListSummaries(ctx context.Context, userID string, from, to *domain.Date) ([]domain.DailySummary, error) {
	query := builder.
		Select("user_id", "activity_date", "total_focus_minutes", "completed_assignments", "productivity_score", "created_at", "updated_at").
		From("daily_summaries").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("activity_date DESC")

	if from != nil {
		query = query.Where(sq.GtOrEq{"activity_date": from.Time()})
	}
	if to != nil {
		query = query.Where(sq.LtOrEq{"activity_date": to.Time()})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []summaryRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, err
	}

	results := make([]domain.DailySummary, 0, len(rows))
	for _, row := range rows {
		results = append(results, domain.DailySummary{
			UserID:               row.UserID,
			Date:                 domain.DateOf(row.ActivityDate),
			TotalFocusMinutes:    row.TotalFocusMinutes,
			CompletedAssignments: row.CompletedAssignments,
			ProductivityScore:    row.ProductivityScore,
			CreatedAt:            row.CreatedAt,
			UpdatedAt:            row.UpdatedAt,
		})
	}
	return results, nil
}

// Advance runs the streak transition under a row lock so writers for one
// (user, streak_type) are strictly serialized. FOR UPDATE locks nothing when
// the row does not exist yet, so the row is materialized first; without it two
// first-ever advances both read empty state and the last committer wins. The
// lock is released at commit; rows for other users are never touched.
func (r *Repository) Advance(ctx context.Context, userID string, streakType domain.StreakType, day domain.Date) (domain.Streak, domain.Transition, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Streak{}, "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx,
		`INSERT INTO streaks (user_id, streak_type) VALUES ($1,$2)
         ON CONFLICT (user_id, streak_type) DO NOTHING`,
		userID, streakType); err != nil {
		return domain.Streak{}, "", err
	}

	current := domain.Streak{UserID: userID, Type: streakType}
	var lastDay *time.Time
	row := tx.QueryRow(ctx,
		`SELECT current_count, last_activity_date, created_at, updated_at
         FROM streaks WHERE user_id=$1 AND streak_type=$2 FOR UPDATE`,
		userID, streakType)
	if err = row.Scan(&current.CurrentCount, &lastDay, &current.CreatedAt, &current.UpdatedAt); err != nil {
		return domain.Streak{}, "", err
	}
	if lastDay != nil {
		current.LastActivityDate = domain.DateOf(lastDay.UTC())
	}

	next, transition := domain.AdvanceStreak(current, day)
	if !transition.Changed() {
		if err = tx.Commit(ctx); err != nil {
			return domain.Streak{}, "", err
		}
		return next, transition, nil
	}

	const upsert = `INSERT INTO streaks (user_id, streak_type, current_count, last_activity_date, created_at, updated_at)
        VALUES ($1,$2,$3,$4,NOW(),NOW())
        ON CONFLICT (user_id, streak_type) DO UPDATE SET
            current_count = EXCLUDED.current_count,
            last_activity_date = EXCLUDED.last_activity_date,
            updated_at = NOW()
        RETURNING created_at, updated_at`

	if err = tx.QueryRow(ctx, upsert, userID, streakType, next.CurrentCount, next.LastActivityDate.Time()).
		Scan(&next.CreatedAt, &next.UpdatedAt); err != nil {
		return domain.Streak{}, "", err
	}

	if err = insertOutbox(ctx, tx, "streak.advanced", userID, outbox.StreakAdvanced{
		UserID:           next.UserID,
		StreakType:       string(next.Type),
		CurrentCount:     next.CurrentCount,
		LastActivityDate: next.LastActivityDate.String(),
		Transition:       string(transition),
		OccurredAt:       next.UpdatedAt,
	}, fmt.Sprintf("%s:%s:%s", userID, streakType, day)); err != nil {
		return domain.Streak{}, "", err
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Streak{}, "", err
	}
	return next, transition, nil
}

// GetStreak fetches one streak row, nil when absent.
func (r *Repository) GetStreak(ctx context.Context, userID string, streakType domain.StreakType) (*domain.Streak, error) {
	streak := domain.Streak{UserID: userID, Type: streakType}
	var lastDay *time.Time
	row := r.db.QueryRow(ctx,
		`SELECT current_count, last_activity_date, created_at, updated_at
         FROM streaks WHERE user_id=$1 AND streak_type=$2`,
		userID, streakType)
	if err := row.Scan(&streak.CurrentCount, &lastDay, &streak.CreatedAt, &streak.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastDay != nil {
		streak.LastActivityDate = domain.DateOf(lastDay.UTC())
	}
	return &streak, nil
}

type streakRow struct {
	UserID           string     `db:"user_id"`
	StreakType       string     `db:"streak_type"`
	CurrentCount     int        `db:"current_count"`
	LastActivityDate *time.Time `db:"last_activity_date"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// ListStreaks returns the user's streaks ordered by type.
func (r *Repository) ListStreaks(ctx context.Context, userID string) ([]domain.Streak, error) {
	sql, args, err := builder.
		Select("user_id", "streak_type", "current_count", "last_activity_date", "created_at", "updated_at").
		From("streaks").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("streak_type ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []streakRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, err
	}

	results := make([]domain.Streak, 0, len(rows))
	for _, row := range rows {
		streak := domain.Streak{
			UserID:       row.UserID,
			Type:         domain.StreakType(row.StreakType),
			CurrentCount: row.CurrentCount,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		}
		if row.LastActivityDate != nil {
			streak.LastActivityDate = domain.DateOf(row.LastActivityDate.UTC())
		}
		results = append(results, streak)
	}
	return results, nil
}

func scanSummary(row pgx.Row) (domain.DailySummary, error) {
	var summary domain.DailySummary
	var date time.Time
	if err := row.Scan(&summary.UserID, &date, &summary.TotalFocusMinutes, &summary.CompletedAssignments,
		&summary.ProductivityScore, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
		return domain.DailySummary{}, err
	}
	summary.Date = domain.DateOf(date.UTC())
	return summary, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, userID string, payload interface{}, dedupeKey string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := outbox.Catalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		userID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}
