package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/statement-extractor/internal/jobs"
	"github.com/dvloznov/statement-extractor/internal/jobs/inmemory"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueueConfig() inmemory.Config {
	return inmemory.Config{Workers: 2, BufferSize: 10, MaxRetries: 0, RetryBackoff: time.Millisecond}
}

func TestRunBatch(t *testing.T) {
	handler := func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ExtractStatementJob)
		if j.SourceURI == "/data/bad.pdf" {
			return errors.New("no transactions found")
		}
		j.Strategy = "heuristic"
		j.TransactionCount = 4
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := runBatch(ctx, []string{"/data/good.pdf", "/data/bad.pdf"}, handler, testQueueConfig(), time.Millisecond)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "good.pdf", results[0].Filename)
	assert.Equal(t, jobs.JobStatusSucceeded, results[0].Status)
	assert.Equal(t, 4, results[0].TransactionCount)

	assert.Equal(t, "bad.pdf", results[1].Filename)
	assert.Equal(t, jobs.JobStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "no transactions found")
}

func TestRunBatchCancelled(t *testing.T) {
	release := make(chan struct{})
	handler := func(ctx context.Context, job jobs.Job) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
		close(release)
	}()

	results, err := runBatch(ctx, []string{"/data/slow.pdf"}, handler, testQueueConfig(), time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printSummary(&buf, []*jobs.ExtractStatementJob{
		{Filename: "april.pdf", Status: jobs.JobStatusSucceeded, Strategy: "ai", TransactionCount: 12},
		{Filename: "may.pdf", Status: jobs.JobStatusFailed, Error: "document unreadable"},
	})

	out := buf.String()
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "april.pdf")
	assert.Contains(t, out, "document unreadable")
	assert.Contains(t, out, "1 of 2 statements extracted")
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "april.pdf", sourceName("gs://bucket/uploads/april.pdf"))
	assert.Equal(t, "may.pdf", sourceName("/tmp/statements/may.pdf"))
	assert.True(t, anyGCS([]string{"/a.pdf", "gs://b/c.pdf"}))
	assert.False(t, anyGCS([]string{"/a.pdf"}))
}
