package docstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drpcorg/docstore/kv"
)

// BulkWriteResult is bulkWrite's return value, spec §4.3 / §6.
type BulkWriteResult struct {
	Success map[string]Document
	Error   map[string]error
}

// BulkWrite atomically categorizes writes against current storage state and
// commits the result, spec §4.3.
//
//  1. Collect ids, look up current state (live then deleted).
//  2. Run the pure categorizer with one captured start time for the batch.
//  3. Stage the four bulk substrate mutations and the changes-meta append
//     concurrently within one transaction.
//  4. Outside the transaction: stamp end times and publish the EventBulk.
func (c *Collection) BulkWrite(rows []WriteRow) (BulkWriteResult, error) {
	if c.isClosed() {
		return BulkWriteResult{}, ErrClosed
	}
	if len(rows) == 0 {
		return BulkWriteResult{}, ErrEmptyBatch
	}

	started := time.Now()
	now := c.clock()

	ids := make([]string, len(rows))
	for i, row := range rows {
		id, err := idOf(row.Document, c.pk)
		if err != nil {
			return BulkWriteResult{}, err
		}
		ids[i] = id
	}

	current, err := c.readCurrent(ids)
	if err != nil {
		return BulkWriteResult{}, err
	}

	cat, err := categorizeBulkWrite(c.pk, current, rows, now)
	if err != nil {
		return BulkWriteResult{}, err
	}

	if err := c.commit(cat); err != nil {
		return BulkWriteResult{}, err
	}

	if len(cat.Events) > 0 {
		endTime := time.Now()
		for i := range cat.Events {
			cat.Events[i].EndTime = endTime
		}
		c.feed.Publish(EventBulk{ID: uuid.NewString(), Events: cat.Events})
	}
	observeBulk(c.name, "bulkWrite", cat.Events, len(cat.Errors), time.Since(started).Seconds())
	c.observeCurrentSequence()

	result := BulkWriteResult{
		Success: make(map[string]Document, len(cat.ChangeIDs)),
		Error:   cat.Errors,
	}
	for id, doc := range cat.PutLive {
		result.Success[id] = stripEnginePrivate(doc)
	}
	for id, doc := range cat.PutDeleted {
		if _, ok := result.Success[id]; !ok {
			result.Success[id] = stripEnginePrivate(doc)
		}
	}

	c.log.Debug("bulkWrite committed", "collection", c.name, "rows", len(rows), "events", len(cat.Events), "conflicts", len(cat.Errors))
	return result, nil
}

// BulkAddRevisions applies remote revisions using revision-ordering rules
// rather than client-conflict rules, spec §4.2/§4.3. It never returns
// per-row errors; losing revisions are simply dropped.
func (c *Collection) BulkAddRevisions(docs []Document) error {
	if c.isClosed() {
		return ErrClosed
	}
	if len(docs) == 0 {
		return ErrEmptyBatch
	}

	started := time.Now()
	now := c.clock()

	ids := make([]string, len(docs))
	for i, d := range docs {
		id, err := idOf(d, c.pk)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	current, err := c.readCurrent(ids)
	if err != nil {
		return err
	}

	cat, err := categorizeBulkAddRevisions(c.pk, current, docs, now)
	if err != nil {
		return err
	}

	if err := c.commit(cat); err != nil {
		return err
	}

	if len(cat.Events) == 0 {
		// spec §4.3: empty bulks (no events produced) are suppressed.
		c.log.Debug("bulkAddRevisions produced no events, suppressing publish", "collection", c.name)
		return nil
	}

	endTime := time.Now()
	for i := range cat.Events {
		cat.Events[i].EndTime = endTime
	}

	bulk := EventBulk{ID: uuid.NewString(), Events: cat.Events}
	c.feed.Publish(bulk)
	observeBulk(c.name, "bulkAddRevisions", cat.Events, 0, time.Since(started).Seconds())
	c.observeCurrentSequence()
	return nil
}

// readCurrent looks up the current stored document (live, then deleted) for
// each id, preserving input order in its traversal (spec §4.3 step 3).
func (c *Collection) readCurrent(ids []string) (map[string]Document, error) {
	live, err := c.kv.Live().BulkGet(ids)
	if err != nil {
		return nil, err
	}
	current := make(map[string]Document, len(ids))
	var missing []string
	for i, id := range ids {
		if live[i] != nil {
			current[id] = live[i]
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return current, nil
	}
	deleted, err := c.kv.Deleted().BulkGet(missing)
	if err != nil {
		return nil, err
	}
	for i, id := range missing {
		if deleted[i] != nil {
			current[id] = deleted[i]
		}
	}
	return current, nil
}

// commit stages cat's mutation sets into one transaction. The four bulk
// substrate mutations and the changes-meta append are fanned out across
// goroutines and joined before the transaction commits (spec §4.3 step 5,
// §5(c)); Txn serializes their access to the underlying batch internally.
func (c *Collection) commit(cat *categorized) error {
	return c.kv.Update(func(tx *kv.Txn) error {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		fail := func(err error) {
			if err == nil {
				return
			}
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}

		run := func(fn func() error) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fail(fn())
			}()
		}

		run(func() error {
			for id, doc := range cat.PutLive {
				if err := tx.Put(c.kv.Live(), id, doc); err != nil {
					return err
				}
			}
			return nil
		})
		run(func() error {
			for _, id := range cat.RemoveLive {
				if err := tx.Delete(c.kv.Live(), id); err != nil {
					return err
				}
			}
			return nil
		})
		run(func() error {
			for id, doc := range cat.PutDeleted {
				if err := tx.Put(c.kv.Deleted(), id, doc); err != nil {
					return err
				}
			}
			return nil
		})
		run(func() error {
			for _, id := range cat.RemoveDeleted {
				if err := tx.Delete(c.kv.Deleted(), id); err != nil {
					return err
				}
			}
			return nil
		})
		if len(cat.ChangeIDs) > 0 {
			run(func() error {
				for _, id := range cat.ChangeIDs {
					if _, err := tx.Append(c.kv.Changes(), id); err != nil {
						return err
					}
				}
				return nil
			})
		}

		wg.Wait()
		return firstErr
	})
}

func (c *Collection) observeCurrentSequence() {
	seq, err := c.kv.Changes().LastAssigned()
	if err != nil {
		return
	}
	observeSequence(c.name, seq)
}
