package rebalancing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/geld/internal/domain"
)

// DefaultStagedTTL is how long a preview stays applicable
const DefaultStagedTTL = 30 * time.Minute

// StagedResult is a computed result waiting for apply or discard
type StagedResult struct {
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Result    *Result   `json:"result"`
	ID        string    `json:"id"`
	ClientID  int64     `json:"client_id"`
}

// StagedRepository keeps staged results in the cache database as msgpack blobs
type StagedRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewStagedRepository creates a new staged result repository
func NewStagedRepository(db *sql.DB, log zerolog.Logger) *StagedRepository {
	return &StagedRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "staged_results").Logger(),
	}
}

// Store saves a result with expiration = now + ttl and returns the staged entry
func (r *StagedRepository) Store(result *Result, ttl time.Duration) (*StagedResult, error) {
	data, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode staged result: %w", err)
	}

	now := r.now()
	staged := &StagedResult{
		CreatedAt: now.UTC().Truncate(time.Second),
		ExpiresAt: now.Add(ttl).UTC().Truncate(time.Second),
		Result:    result,
		ID:        uuid.NewString(),
		ClientID:  result.ClientID,
	}

	_, err = r.db.Exec(
		"INSERT INTO staged_results (id, client_id, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		staged.ID, staged.ClientID, data, staged.CreatedAt.Unix(), staged.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store staged result: %w", err)
	}

	r.log.Debug().
		Str("staged_id", staged.ID).
		Int64("client_id", staged.ClientID).
		Int("bytes", len(data)).
		Msg("Staged result stored")

	return staged, nil
}

// Get returns a staged result that has not expired. Missing and expired
// entries both yield domain.ErrNotFound.
func (r *StagedRepository) Get(id string) (*StagedResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.ValidationError{Field: "staged_id", Message: fmt.Sprintf("invalid staged id %q", id)}
	}

	var staged StagedResult
	var data []byte
	var createdAt, expiresAt int64

	err := r.db.QueryRow(
		"SELECT id, client_id, data, created_at, expires_at FROM staged_results WHERE id = ? AND expires_at > ?",
		id, r.now().Unix(),
	).Scan(&staged.ID, &staged.ClientID, &data, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("staged result %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staged result: %w", err)
	}

	var result Result
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode staged result %s: %w", id, err)
	}

	staged.CreatedAt = time.Unix(createdAt, 0).UTC()
	staged.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	staged.Result = &result
	return &staged, nil
}

// Delete removes a staged result. Returns domain.ErrNotFound when absent.
func (r *StagedRepository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM staged_results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete staged result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("staged result %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes every expired entry and returns how many were removed
func (r *StagedRepository) DeleteExpired() (int64, error) {
	res, err := r.db.Exec("DELETE FROM staged_results WHERE expires_at <= ?", r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired staged results: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CountByClient returns how many unexpired staged results a client has
func (r *StagedRepository) CountByClient(clientID int64) (int, error) {
	var n int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM staged_results WHERE client_id = ? AND expires_at > ?",
		clientID, r.now().Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count staged results: %w", err)
	}
	return n, nil
}
