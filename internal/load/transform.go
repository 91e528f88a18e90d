package load

import (
	"context"

	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"

	"github.com/sirupsen/logrus"
)

// epochExpr converts the events' epoch seconds into a timestamp
const epochExpr = "TIMESTAMP 'epoch' + ts * INTERVAL '1 second'"

const usersInsert = `INSERT INTO users (user_id, first_name, last_name, gender, level)
SELECT DISTINCT userId AS user_id,
       firstName AS first_name,
       lastName AS last_name,
       gender,
       level
FROM staging_events`

const songsInsert = `INSERT INTO songs (song_id, title, artist_id, year, duration)
SELECT DISTINCT song_id,
       title,
       artist_id,
       year,
       duration
FROM staging_songs`

const artistsInsert = `INSERT INTO artists (artist_id, name, location, latitude, longitude)
SELECT DISTINCT artist_id,
       artist_name,
       artist_location,
       artist_latitude,
       artist_longitude
FROM staging_songs`

const timesInsert = `INSERT INTO times (start_time, hour, day, week, month, year, weekday)
SELECT DISTINCT ` + epochExpr + ` AS start_time,
       EXTRACT(hour FROM ` + epochExpr + `) AS hour,
       EXTRACT(day FROM ` + epochExpr + `) AS day,
       EXTRACT(week FROM ` + epochExpr + `) AS week,
       EXTRACT(month FROM ` + epochExpr + `) AS month,
       EXTRACT(year FROM ` + epochExpr + `) AS year,
       EXTRACT(DOW FROM ` + epochExpr + `) AS weekday
FROM staging_events`

// Events whose song has no exact title match are dropped by the inner join.
const songplaysInsert = `INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
SELECT se.ts AS start_time,
       se.userId AS user_id,
       se.level AS level,
       ss.song_id AS song_id,
       ss.artist_id AS artist_id,
       se.sessionId AS session_id,
       se.location AS location,
       se.userAgent AS user_agent
FROM staging_events se
JOIN staging_songs ss ON ss.title = se.song`

// Transformer fills the fact and dimension tables from staging
type Transformer struct {
	runner Runner
	log    logrus.FieldLogger
}

// NewTransformer creates a transformer
func NewTransformer(runner Runner, log logrus.FieldLogger) *Transformer {
	return &Transformer{runner: runner, log: log.WithField("component", "transform")}
}

// TransformStatements returns the inserts with dimensions before the fact table
func TransformStatements() []warehouse.Statement {
	return []warehouse.Statement{
		{Table: warehouse.Users, SQL: usersInsert},
		{Table: warehouse.Songs, SQL: songsInsert},
		{Table: warehouse.Artists, SQL: artistsInsert},
		{Table: warehouse.Times, SQL: timesInsert},
		{Table: warehouse.Songplays, SQL: songplaysInsert},
	}
}

// Transform runs the five inserts in order
func (t *Transformer) Transform(ctx context.Context) error {
	t.log.Info("Transforming staging into star schema")
	if err := t.runner.Run(ctx, StepTransform, TransformStatements()); err != nil {
		return warehouse.WrapError(err, errors.ErrCodeTransformFailed, "Failed to insert")
	}
	return nil
}
