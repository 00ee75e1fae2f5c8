// Package ledger records the outcome of encode and decode operations. Only
// digests and outcomes are stored, never keys, fragments or plaintext.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stegokey/backend-go/internal/db"
	"github.com/stegokey/backend-go/pkg/client"
	"github.com/stegokey/backend-go/pkg/envelope"
)

const OutcomeOK = "ok"

type Record struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Op          string    `json:"op" db:"op"`
	Outcome     string    `json:"outcome" db:"outcome"`
	Carrier     *string   `json:"carrier,omitempty" db:"carrier"`
	Algorithm   *string   `json:"alg,omitempty" db:"algorithm"`
	ImageDigest *string   `json:"imageDigest,omitempty" db:"image_digest"`
	VideoDigest *string   `json:"videoDigest,omitempty" db:"video_digest"`
	AudioDigest *string   `json:"audioDigest,omitempty" db:"audio_digest"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// Recorder persists records. The API holds one; a nil database means Nop.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Lister reads back recorded operations, most recent first.
type Lister interface {
	List(ctx context.Context, limit int) ([]Record, error)
}

// NewRecord describes one finished operation. env may be nil when the
// envelope was never built or could not be read.
func NewRecord(op string, env *envelope.Envelope, err error) Record {
	r := Record{
		ID:        uuid.New(),
		Op:        op,
		Outcome:   OutcomeOK,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		r.Outcome = "error"
		if kind := client.KindOf(err); kind != "" {
			r.Outcome = string(kind)
		}
		if c := client.CarrierOf(err); c != "" {
			r.Carrier = ptr(string(c))
		}
	}
	if env != nil {
		if env.Algorithm != "" {
			r.Algorithm = ptr(env.Algorithm)
		}
		r.ImageDigest = ptr(env.Hashes.Image)
		r.VideoDigest = ptr(env.Hashes.Video)
		r.AudioDigest = ptr(env.Hashes.Audio)
	}
	return r
}

func ptr(s string) *string {
	return &s
}

type Client struct {
	db *db.Client
}

func NewClient(db *db.Client) *Client {
	return &Client{
		db: db,
	}
}

func (c *Client) Record(ctx context.Context, r Record) error {
	args := pgx.NamedArgs{
		"id":          r.ID,
		"op":          r.Op,
		"outcome":     r.Outcome,
		"carrier":     r.Carrier,
		"algorithm":   r.Algorithm,
		"imageDigest": r.ImageDigest,
		"videoDigest": r.VideoDigest,
		"audioDigest": r.AudioDigest,
		"createdAt":   r.CreatedAt,
	}
	_, err := c.db.Exec(ctx, `
		INSERT INTO stegokey.operation (
			id,
			op,
			outcome,
			carrier,
			algorithm,
			image_digest,
			video_digest,
			audio_digest,
			created_at
		)
		VALUES (@id, @op, @outcome, @carrier, @algorithm, @imageDigest, @videoDigest, @audioDigest, @createdAt)
	`, args)
	return err
}

// List returns the most recent records first.
func (c *Client) List(ctx context.Context, limit int) ([]Record, error) {
	args := pgx.NamedArgs{
		"limit": limit,
	}
	rows, err := c.db.Query(ctx, `
		SELECT id, op, outcome, carrier, algorithm, image_digest, video_digest, audio_digest, created_at
		FROM stegokey.operation
		ORDER BY created_at DESC
		LIMIT @limit
	`, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowToStructByName[Record])
}

var (
	_ Recorder = (*Client)(nil)
	_ Lister   = (*Client)(nil)
)

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) error {
	return nil
}
