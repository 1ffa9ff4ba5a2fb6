package postgres

import (
	"context"

	// Registers the PostgreSQL migration executor.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the tally store.
var Migrations = migrate.NewGroup("tally")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tally_users",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_users (
    id                   BIGINT PRIMARY KEY,
    screen_name          TEXT NOT NULL DEFAULT '',
    display_name         TEXT NOT NULL DEFAULT '',
    asked_count          BIGINT NOT NULL DEFAULT 0,
    answered_count       BIGINT NOT NULL DEFAULT 0,
    commented_count      BIGINT NOT NULL DEFAULT 0,
    smiled_count         BIGINT NOT NULL DEFAULT 0,
    comment_smiled_count BIGINT NOT NULL DEFAULT 0,
    friend_count         BIGINT NOT NULL DEFAULT 0,
    follower_count       BIGINT NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tally_users_asked ON tally_users (asked_count DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_questions",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_questions (
    id           BIGINT PRIMARY KEY,
    user_id      BIGINT NOT NULL,
    content      TEXT NOT NULL DEFAULT '',
    anonymous    BOOLEAN NOT NULL DEFAULT FALSE,
    author_name  TEXT NOT NULL DEFAULT '',
    direct       BOOLEAN NOT NULL DEFAULT FALSE,
    answer_count BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tally_questions_user ON tally_questions (user_id);
CREATE INDEX IF NOT EXISTS idx_tally_questions_public ON tally_questions (user_id) WHERE NOT anonymous;
CREATE INDEX IF NOT EXISTS idx_tally_questions_answers ON tally_questions (answer_count DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_questions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_answers",
			Version: "20240601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_answers (
    id            BIGINT PRIMARY KEY,
    question_id   BIGINT NOT NULL,
    user_id       BIGINT NOT NULL,
    content       TEXT NOT NULL DEFAULT '',
    smile_count   BIGINT NOT NULL DEFAULT 0,
    comment_count BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tally_answers_question ON tally_answers (question_id);
CREATE INDEX IF NOT EXISTS idx_tally_answers_user ON tally_answers (user_id);
CREATE INDEX IF NOT EXISTS idx_tally_answers_smiles ON tally_answers (smile_count DESC);
CREATE INDEX IF NOT EXISTS idx_tally_answers_comments ON tally_answers (comment_count DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_answers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_comments",
			Version: "20240601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_comments (
    id          BIGINT PRIMARY KEY,
    answer_id   BIGINT NOT NULL,
    user_id     BIGINT NOT NULL,
    content     TEXT NOT NULL DEFAULT '',
    smile_count BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tally_comments_answer ON tally_comments (answer_id);
CREATE INDEX IF NOT EXISTS idx_tally_comments_user ON tally_comments (user_id);
CREATE INDEX IF NOT EXISTS idx_tally_comments_smiles ON tally_comments (smile_count DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_comments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_edges",
			Version: "20240601000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_smiles (
    id         BIGINT PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    answer_id  BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_smiles_edge ON tally_smiles (user_id, answer_id);
CREATE INDEX IF NOT EXISTS idx_tally_smiles_answer ON tally_smiles (answer_id);

CREATE TABLE IF NOT EXISTS tally_comment_smiles (
    id         BIGINT PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    comment_id BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_comment_smiles_edge ON tally_comment_smiles (user_id, comment_id);
CREATE INDEX IF NOT EXISTS idx_tally_comment_smiles_comment ON tally_comment_smiles (comment_id);

CREATE TABLE IF NOT EXISTS tally_relationships (
    id         BIGINT PRIMARY KEY,
    source_id  BIGINT NOT NULL,
    target_id  BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_relationships_edge ON tally_relationships (source_id, target_id);
CREATE INDEX IF NOT EXISTS idx_tally_relationships_target ON tally_relationships (target_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS tally_relationships;
DROP TABLE IF EXISTS tally_comment_smiles;
DROP TABLE IF EXISTS tally_smiles;
`)
				return err
			},
		},
	)
}
