package testent

// PostgresSchema creates the tables of the domain.
// Polymorphic foreign keys carry no constraint, as their target table varies per row.
// The other constraints are checked at commit, since a batch may write a child before its parent row changes.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS authors (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS images (
	id              BIGSERIAL PRIMARY KEY,
	url             TEXT   NOT NULL DEFAULT '',
	width           BIGINT NOT NULL DEFAULT 0,
	attachable_id   BIGINT,
	attachable_type TEXT
);

CREATE TABLE IF NOT EXISTS videos (
	id              BIGSERIAL PRIMARY KEY,
	url             TEXT   NOT NULL DEFAULT '',
	seconds         BIGINT NOT NULL DEFAULT 0,
	attachable_id   BIGINT,
	attachable_type TEXT
);

CREATE TABLE IF NOT EXISTS posts (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	author_id  BIGINT REFERENCES authors (id) DEFERRABLE INITIALLY DEFERRED,
	cover_id   BIGINT,
	cover_type TEXT
);

CREATE TABLE IF NOT EXISTS comments (
	id        BIGSERIAL PRIMARY KEY,
	body      TEXT NOT NULL DEFAULT '',
	post_id   BIGINT REFERENCES posts (id) DEFERRABLE INITIALLY DEFERRED,
	parent_id BIGINT REFERENCES comments (id) DEFERRABLE INITIALLY DEFERRED
);

CREATE TABLE IF NOT EXISTS contract_rows (
	id     BIGSERIAL PRIMARY KEY,
	name   TEXT,
	ref_id BIGINT
);
`

const PostgresDropSchema = `
DROP TABLE IF EXISTS comments;
DROP TABLE IF EXISTS posts;
DROP TABLE IF EXISTS videos;
DROP TABLE IF EXISTS images;
DROP TABLE IF EXISTS authors;
DROP TABLE IF EXISTS contract_rows;
`
