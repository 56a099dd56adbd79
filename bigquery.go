package straincrawler

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
)

type BigQueryData struct {
	URL       string    `bigquery:"url"`
	HTMLData  string    `bigquery:"html_data"`
	CreatedAt time.Time `bigquery:"created_at"`
}

// bigQueryInserter is the part of *bigquery.Inserter the archive needs.
type bigQueryInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// bigQueryArchive stores every fetched page in a BigQuery table partitioned on created_at.
type bigQueryArchive struct {
	client   *bigquery.Client
	inserter bigQueryInserter
	now      func() time.Time
}

func (app *Crawler) openArchive(ctx context.Context) (*bigQueryArchive, error) {
	dataset := app.Config.GetString("BIGQUERY_DATASET")
	table := app.Config.GetString("BIGQUERY_TABLE")
	if dataset == "" || table == "" {
		return nil, eris.New("BIGQUERY_DATASET and BIGQUERY_TABLE must be set")
	}
	projectID, err := app.projectID()
	if err != nil {
		return nil, err
	}

	client, err := bigquery.NewClient(ctx, projectID, app.clientOptions()...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create BigQuery client")
	}
	app.Logger.Info("Archiving pages to %s.%s.%s", projectID, dataset, table)
	return &bigQueryArchive{
		client:   client,
		inserter: client.Dataset(dataset).Table(table).Inserter(),
		now:      time.Now,
	}, nil
}

func (a *bigQueryArchive) Archive(ctx context.Context, pageUrl, html string) error {
	rows := []*BigQueryData{{URL: pageUrl, HTMLData: html, CreatedAt: a.now()}}
	if err := a.inserter.Put(ctx, rows); err != nil {
		return eris.Wrapf(err, "failed to insert %s", pageUrl)
	}
	return nil
}

func (a *bigQueryArchive) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}
