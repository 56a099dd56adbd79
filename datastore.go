package straincrawler

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const checkpointKind = "StrainCheckpoint"

type datastoreCheckpoint struct {
	client    *datastore.Client
	namespace string
}

func newDatastoreCheckpoint(ctx context.Context, projectID, namespace string, opts ...option.ClientOption) (*datastoreCheckpoint, error) {
	client, err := datastore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create Datastore client")
	}
	return &datastoreCheckpoint{client: client, namespace: namespace}, nil
}

func (d *datastoreCheckpoint) key(run, name string) *datastore.Key {
	key := datastore.NameKey(checkpointKind, run+"/"+name, nil)
	key.Namespace = d.namespace
	return key
}

func (d *datastoreCheckpoint) Completed(ctx context.Context, run string) (map[string]bool, error) {
	query := datastore.NewQuery(checkpointKind).
		Namespace(d.namespace).
		FilterField("Run", "=", run).
		FilterField("Status", "=", true)

	var entries []CheckpointEntry
	if _, err := d.client.GetAll(ctx, query, &entries); err != nil {
		return nil, eris.Wrap(err, "failed to retrieve checkpoints")
	}
	done := make(map[string]bool, len(entries))
	for _, e := range entries {
		done[e.Name] = true
	}
	return done, nil
}

func (d *datastoreCheckpoint) MarkComplete(ctx context.Context, run, name string) error {
	return d.update(ctx, run, name, func(e *CheckpointEntry) {
		e.Status = true
		e.Error = false
	})
}

func (d *datastoreCheckpoint) MarkError(ctx context.Context, run, name string, cause error) error {
	return d.update(ctx, run, name, func(e *CheckpointEntry) {
		e.Error = true
		e.LastError = cause.Error()
	})
}

// update reads the entry, applies fn and writes it back in one transaction.
func (d *datastoreCheckpoint) update(ctx context.Context, run, name string, fn func(*CheckpointEntry)) error {
	key := d.key(run, name)
	_, err := d.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entry CheckpointEntry
		if err := tx.Get(key, &entry); err != nil {
			if !errors.Is(err, datastore.ErrNoSuchEntity) {
				return err
			}
			entry = CheckpointEntry{Run: run, Name: name, CreatedAt: time.Now()}
		}
		entry.Attempts++
		entry.UpdatedAt = time.Now()
		fn(&entry)
		_, err := tx.Put(key, &entry)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "[%s:%s] could not update checkpoint", run, name)
	}
	return nil
}

func (d *datastoreCheckpoint) Close(context.Context) error {
	return d.client.Close()
}
