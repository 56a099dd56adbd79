package straincrawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInserter struct {
	rows []*BigQueryData
	err  error
}

func (f *fakeInserter) Put(_ context.Context, src interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, src.([]*BigQueryData)...)
	return nil
}

func TestArchiveInsertsPage(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ins := &fakeInserter{}
	archive := &bigQueryArchive{inserter: ins, now: func() time.Time { return at }}

	require.NoError(t, archive.Archive(context.Background(), testBase+"/strains/a", "<html></html>"))
	require.Len(t, ins.rows, 1)
	assert.Equal(t, BigQueryData{URL: testBase + "/strains/a", HTMLData: "<html></html>", CreatedAt: at}, *ins.rows[0])
	assert.NoError(t, archive.Close())
}

func TestArchiveFailureIsReported(t *testing.T) {
	archive := &bigQueryArchive{inserter: &fakeInserter{err: errors.New("quota")}, now: time.Now}
	err := archive.Archive(context.Background(), testBase+"/strains/a", "")
	assert.ErrorContains(t, err, "failed to insert")
}

func TestOpenArchiveRequiresTable(t *testing.T) {
	app := newTestCrawler(t, newFakeFetcher())
	_, err := app.openArchive(context.Background())
	assert.Error(t, err)
}

func TestOpenCheckpointDrivers(t *testing.T) {
	app := newTestCrawler(t, newFakeFetcher())
	cp, err := app.openCheckpoint(context.Background())
	require.NoError(t, err)
	assert.IsType(t, nopCheckpoint{}, cp)

	app.Config.Add("CHECKPOINT_DRIVER", "redis")
	_, err = app.openCheckpoint(context.Background())
	assert.ErrorContains(t, err, "unknown CHECKPOINT_DRIVER")
}
