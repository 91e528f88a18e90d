package warehouse

const stagingEventsDDL = `CREATE TABLE IF NOT EXISTS staging_events (
    artist        VARCHAR(1000),
    auth          VARCHAR(1000),
    firstName     VARCHAR(1000),
    gender        VARCHAR(1000),
    itemInSession BIGINT,
    lastName      VARCHAR(1000),
    length        FLOAT,
    level         VARCHAR(1000),
    location      VARCHAR(1000),
    method        VARCHAR(1000),
    page          VARCHAR(1000),
    registration  FLOAT,
    sessionId     BIGINT,
    song          VARCHAR(1000),
    status        BIGINT,
    ts            BIGINT,
    userAgent     VARCHAR(1000),
    userId        VARCHAR(1000)
)`

const stagingSongsDDL = `CREATE TABLE IF NOT EXISTS staging_songs (
    num_songs        BIGINT NOT NULL,
    artist_id        VARCHAR(1000),
    artist_latitude  FLOAT,
    artist_longitude FLOAT,
    artist_location  VARCHAR(1000),
    artist_name      VARCHAR(1000),
    song_id          VARCHAR(1000) NOT NULL,
    title            VARCHAR(1000),
    duration         FLOAT,
    year             BIGINT
)`

const usersDDL = `CREATE TABLE IF NOT EXISTS users (
    user_id    VARCHAR(1000) PRIMARY KEY,
    first_name VARCHAR(1000),
    last_name  VARCHAR(1000),
    gender     VARCHAR(1000),
    level      VARCHAR(1000)
)`

const songsDDL = `CREATE TABLE IF NOT EXISTS songs (
    song_id   VARCHAR(1000) NOT NULL PRIMARY KEY,
    title     VARCHAR(1000),
    artist_id VARCHAR(1000) NOT NULL,
    year      INTEGER,
    duration  FLOAT
)`

const artistsDDL = `CREATE TABLE IF NOT EXISTS artists (
    artist_id VARCHAR(1000) PRIMARY KEY,
    name      VARCHAR(1000),
    location  VARCHAR(1000),
    latitude  FLOAT,
    longitude FLOAT
)`

const timesDDL = `CREATE TABLE IF NOT EXISTS times (
    start_time TIMESTAMP PRIMARY KEY,
    hour       INT NOT NULL,
    day        INT NOT NULL,
    week       INT NOT NULL,
    month      INT NOT NULL,
    year       INT NOT NULL,
    weekday    INT NOT NULL
)`

// start_time stays BIGINT epoch seconds here; times.start_time is the
// derived TIMESTAMP, so the reference is by value rather than declared.
const songplaysDDL = `CREATE TABLE IF NOT EXISTS songplays (
    songplay_id INT IDENTITY(0,1) PRIMARY KEY,
    start_time  BIGINT NOT NULL,
    user_id     VARCHAR(1000) NOT NULL REFERENCES users(user_id),
    level       VARCHAR(1000),
    song_id     VARCHAR(1000) NOT NULL REFERENCES songs(song_id),
    artist_id   VARCHAR(1000) NOT NULL REFERENCES artists(artist_id),
    session_id  INTEGER NOT NULL,
    location    VARCHAR(1000),
    user_agent  VARCHAR(1000)
)`
