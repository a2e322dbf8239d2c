package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository abstracts announcement persistence.
type Repository interface {
	Create(ctx context.Context, post Post) (Post, error)
	Get(ctx context.Context, id int64) (Post, error)
	List(ctx context.Context, publishedOnly bool) ([]Post, error)
	Update(ctx context.Context, post Post) error
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const postColumns = `id, title, body, status, author_id, created_at, updated_at, published_at`

func scanPost(row pgx.Row) (Post, error) {
	var post Post
	var published pgtype.Timestamptz
	err := row.Scan(
		&post.ID, &post.Title, &post.Body, &post.Status,
		&post.AuthorID, &post.CreatedAt, &post.UpdatedAt, &published,
	)
	if err != nil {
		return Post{}, err
	}
	if published.Valid {
		t := published.Time
		post.PublishedAt = &t
	}
	return post, nil
}

// Create inserts a draft post.
func (r *PGRepository) Create(ctx context.Context, post Post) (Post, error) {
	const q = `
		INSERT INTO news_posts (title, body, status, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, post.Title, post.Body, post.Status, post.AuthorID).
		Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return Post{}, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// Get loads a single post.
func (r *PGRepository) Get(ctx context.Context, id int64) (Post, error) {
	q := `SELECT ` + postColumns + ` FROM news_posts WHERE id = $1`
	post, err := scanPost(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// List returns posts newest first, optionally only published ones.
func (r *PGRepository) List(ctx context.Context, publishedOnly bool) ([]Post, error) {
	q := `SELECT ` + postColumns + ` FROM news_posts`
	args := []any{}
	if publishedOnly {
		q += ` WHERE status = $1`
		args = append(args, StatusPublished)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// Update rewrites title and body of a post.
func (r *PGRepository) Update(ctx context.Context, post Post) error {
	const q = `
		UPDATE news_posts SET title = $2, body = $3, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, post.ID, post.Title, post.Body)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// MarkPublished flips a draft to published.
func (r *PGRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	const q = `
		UPDATE news_posts SET status = $2, published_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`
	tag, err := r.pool.Exec(ctx, q, id, StatusPublished, at, StatusDraft)
	if err != nil {
		return fmt.Errorf("publish post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}
	return nil
}

// Delete removes a post.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM news_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}
