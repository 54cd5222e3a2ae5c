package outbox

const summaryUpdatedSchema = `{
  "type": "object",
  "title": "SummaryUpdated",
  "properties": {
    "user_id": {"type": "string"},
    "activity_date": {"type": "string", "format": "date"},
    "kind": {"type": "string"},
    "total_focus_minutes": {"type": "integer"},
    "completed_assignments": {"type": "integer"},
    "productivity_score": {"type": "number"},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "activity_date", "kind", "total_focus_minutes", "completed_assignments", "productivity_score", "updated_at"],
  "additionalProperties": false
}`

const streakAdvancedSchema = `{
  "type": "object",
  "title": "StreakAdvanced",
  "properties": {
    "user_id": {"type": "string"},
    "streak_type": {"type": "string"},
    "current_count": {"type": "integer"},
    "last_activity_date": {"type": "string", "format": "date"},
    "transition": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "streak_type", "current_count", "last_activity_date", "transition", "occurred_at"],
  "additionalProperties": false
}`
