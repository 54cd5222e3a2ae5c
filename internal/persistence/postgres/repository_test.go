package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/progress/internal/domain"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewRepository(mock)
}

func TestProfile(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT user_id, timezone, daily_focus_goal FROM users").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "timezone", "daily_focus_goal"}).
			AddRow("u1", "America/New_York", 120))

	profile, err := repo.Profile(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "America/New_York", profile.Timezone)
	assert.Equal(t, 120, profile.DailyFocusGoal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT user_id, timezone, daily_focus_goal FROM users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	profile, err := repo.Profile(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, profile)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventInsertsAndScores(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := domain.Date{Year: 2024, Month: time.May, Day: 15}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applied_events").
		WithArgs("evt-1", "u1", day.Time()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO daily_summaries").
		WithArgs("u1", day.Time(), 30, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "activity_date", "total_focus_minutes", "completed_assignments",
			"productivity_score", "created_at", "updated_at",
		}).AddRow("u1", day.Time(), 90, 1, 0.0, now, now))
	mock.ExpectExec("UPDATE daily_summaries SET productivity_score").
		WithArgs("u1", day.Time(), domain.Score(90, 1, 120)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("daily_summary", "u1", "summary.updated", "progress_summary_events",
			"progress_summary_events-value", "u1", pgxmock.AnyArg(), "evt-1:summary.updated").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	summary, duplicate, err := repo.ApplyEvent(context.Background(), domain.SummaryApply{
		EventID:        "evt-1",
		UserID:         "u1",
		Date:           day,
		Kind:           domain.KindFocus,
		FocusMinutes:   30,
		DailyFocusGoal: 120,
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, 90, summary.TotalFocusMinutes)
	assert.Equal(t, 1, summary.CompletedAssignments)
	assert.InDelta(t, domain.Score(90, 1, 120), summary.ProductivityScore, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventReplayIsNoOp(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := domain.Date{Year: 2024, Month: time.May, Day: 15}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applied_events").
		WithArgs("evt-1", "u1", day.Time()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT user_id, activity_date, total_focus_minutes").
		WithArgs("u1", day.Time()).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "activity_date", "total_focus_minutes", "completed_assignments",
			"productivity_score", "created_at", "updated_at",
		}).AddRow("u1", day.Time(), 55, 2, 0.5, now, now))
	mock.ExpectCommit()

	summary, duplicate, err := repo.ApplyEvent(context.Background(), domain.SummaryApply{
		EventID:        "evt-1",
		UserID:         "u1",
		Date:           day,
		Kind:           domain.KindFocus,
		FocusMinutes:   30,
		DailyFocusGoal: 120,
	})
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, 55, summary.TotalFocusMinutes, "the stored row is returned untouched")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceStartsStreak(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := domain.Date{Year: 2024, Month: time.May, Day: 15}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO streaks").
		WithArgs("u1", domain.StreakFocus).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT current_count, last_activity_date, created_at, updated_at").
		WithArgs("u1", domain.StreakFocus).
		WillReturnRows(pgxmock.NewRows([]string{"current_count", "last_activity_date", "created_at", "updated_at"}).
			AddRow(0, (*time.Time)(nil), now, now))
	mock.ExpectQuery("INSERT INTO streaks").
		WithArgs("u1", domain.StreakFocus, 1, day.Time()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("streak", "u1", "streak.advanced", "progress_streak_events",
			"progress_streak_events-value", "u1", pgxmock.AnyArg(), "u1:focus:2024-05-15").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	streak, transition, err := repo.Advance(context.Background(), "u1", domain.StreakFocus, day)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionStarted, transition)
	assert.Equal(t, 1, streak.CurrentCount)
	assert.Equal(t, day, streak.LastActivityDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceExtendsStreak(t *testing.T) {
	mock, repo := newMockRepo(t)
	day := domain.Date{Year: 2024, Month: time.May, Day: 15}
	lastDay := domain.Date{Year: 2024, Month: time.May, Day: 14}.Time()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO streaks").
		WithArgs("u1", domain.StreakFocus).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT current_count, last_activity_date, created_at, updated_at").
		WithArgs("u1", domain.StreakFocus).
		WillReturnRows(pgxmock.NewRows([]string{"current_count", "last_activity_date", "created_at", "updated_at"}).
			AddRow(5, &lastDay, now, now))
	mock.ExpectQuery("INSERT INTO streaks").
		WithArgs("u1", domain.StreakFocus, 6, day.Time()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("streak", "u1", "streak.advanced", "progress_streak_events",
			"progress_streak_events-value", "u1", pgxmock.AnyArg(), "u1:focus:2024-05-15").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	streak, transition, err := repo.Advance(context.Background(), "u1", domain.StreakFocus, day)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionExtended, transition)
	assert.Equal(t, 6, streak.CurrentCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceOutOfOrderWritesNothing(t *testing.T) {
	mock, repo := newMockRepo(t)
	lastDay := domain.Date{Year: 2024, Month: time.May, Day: 15}.Time()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO streaks").
		WithArgs("u1", domain.StreakFocus).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT current_count, last_activity_date, created_at, updated_at").
		WithArgs("u1", domain.StreakFocus).
		WillReturnRows(pgxmock.NewRows([]string{"current_count", "last_activity_date", "created_at", "updated_at"}).
			AddRow(5, &lastDay, now, now))
	mock.ExpectCommit()

	streak, transition, err := repo.Advance(context.Background(), "u1", domain.StreakFocus,
		domain.Date{Year: 2024, Month: time.May, Day: 12})
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionOutOfOrder, transition)
	assert.Equal(t, 5, streak.CurrentCount, "a late day never rewinds the streak")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStreakNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT current_count, last_activity_date, created_at, updated_at").
		WithArgs("u1", domain.StreakLearning).
		WillReturnError(pgx.ErrNoRows)

	streak, err := repo.GetStreak(context.Background(), "u1", domain.StreakLearning)
	require.NoError(t, err)
	assert.Nil(t, streak)
	require.NoError(t, mock.ExpectationsWereMet())
}
