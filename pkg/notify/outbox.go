package notify

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const (
	bucketOutbox     = "outbox"
	bucketDeadLetter = "dead_letter"
)

// Envelope is a queued change.
type Envelope struct {
	ID         uint64        `json:"id"`
	Change     ledger.Change `json:"change"`
	Attempts   int           `json:"attempts"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	LastError  string        `json:"last_error,omitempty"`
}

// Outbox is a durable FIFO of changes backed by bbolt. It implements
// ledger.Notifier by enqueueing.
type Outbox struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenOutbox opens or creates the outbox file at path.
func OpenOutbox(path string) (*Outbox, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{bucketOutbox, bucketDeadLetter} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Outbox{db: db, now: time.Now}, nil
}

// Close closes the outbox file.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Notify enqueues change.
func (o *Outbox) Notify(_ context.Context, change ledger.Change) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketOutbox))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(Envelope{ID: seq, Change: change, EnqueuedAt: o.now().UTC()})
		if err != nil {
			return fmt.Errorf("failed to marshal change: %w", err)
		}
		return b.Put(itob(seq), data)
	})
}

// Pending returns up to limit queued envelopes, oldest first. A limit of 0
// returns all of them.
func (o *Outbox) Pending(limit int) ([]Envelope, error) {
	return o.list(bucketOutbox, limit)
}

// DeadLetters returns the envelopes given up on, oldest first.
func (o *Outbox) DeadLetters() ([]Envelope, error) {
	return o.list(bucketDeadLetter, 0)
}

func (o *Outbox) list(bucket string, limit int) ([]Envelope, error) {
	var out []Envelope
	err := o.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) == limit {
				break
			}
			var env Envelope
			if err := json.Unmarshal(v, &env); err != nil {
				return fmt.Errorf("failed to decode outbox entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, env)
		}
		return nil
	})
	return out, err
}

// Ack removes a delivered envelope.
func (o *Outbox) Ack(id uint64) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOutbox)).Delete(itob(id))
	})
}

// Fail records a failed delivery attempt. Once an envelope has failed
// maxAttempts times it moves to the dead letter bucket and Fail reports
// true. A maxAttempts of 0 never gives up.
func (o *Outbox) Fail(id uint64, cause error, maxAttempts int) (deadLettered bool, err error) {
	err = o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketOutbox))
		data := b.Get(itob(id))
		if data == nil {
			return nil
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("failed to decode outbox entry %d: %w", id, err)
		}
		env.Attempts++
		env.LastError = cause.Error()

		updated, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to marshal change: %w", err)
		}
		if maxAttempts <= 0 || env.Attempts < maxAttempts {
			return b.Put(itob(id), updated)
		}

		if err := tx.Bucket([]byte(bucketDeadLetter)).Put(itob(id), updated); err != nil {
			return err
		}
		deadLettered = true
		return b.Delete(itob(id))
	})
	return deadLettered, err
}

// Len returns the number of queued envelopes.
func (o *Outbox) Len() (int, error) {
	var n int
	err := o.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketOutbox)).Stats().KeyN
		return nil
	})
	return n, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
