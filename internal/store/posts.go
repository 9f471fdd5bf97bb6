package store

import (
	"database/sql"
	"time"
)

// SavePost records content created by a publish, reply or quote.
func (s *Store) SavePost(p *Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO posts (label, kind, url, text, target, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Label, p.Kind, p.URL, p.Text, p.Target, p.CreatedAt)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// MarkDeleted flags the live recorded posts with the given status ID as
// deleted. It returns false when none matched.
func (s *Store) MarkDeleted(postID string) (bool, error) {
	if postID == "" {
		return false, nil
	}
	res, err := s.db.Exec(`
		UPDATE posts SET deleted_at = ?
		WHERE deleted_at IS NULL AND url LIKE ?
	`, time.Now().UTC(), "%/status/"+postID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListPosts returns the newest posts, optionally for one label.
func (s *Store) ListPosts(label string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, label, kind, url, text, target, created_at, deleted_at
		FROM posts
		WHERE ? = '' OR label = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, label, label, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var deleted sql.NullTime
		if err := rows.Scan(&p.ID, &p.Label, &p.Kind, &p.URL, &p.Text, &p.Target, &p.CreatedAt, &deleted); err != nil {
			return nil, err
		}
		if deleted.Valid {
			p.DeletedAt = &deleted.Time
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
