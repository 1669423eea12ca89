package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/audiobook-service/internal/config"
	"github.com/book-expert/audiobook-service/internal/core"
	"github.com/book-expert/audiobook-service/internal/worker"
)

func startTestServer(t *testing.T) (*server.Server, nats.JetStreamContext, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	return natsServer, jetstreamContext, natsConnection
}

func testNATSConfig() config.NATSConfig {
	return config.NATSConfig{
		JobStreamName:   "AUDIO_JOBS",
		JobConsumerName: "audio-workers",
		JobSubject:      "audio.jobs",
	}
}

func TestDispatchAndConsume(t *testing.T) {
	t.Parallel()

	natsServer, jetstreamContext, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	natsCfg := testNATSConfig()
	require.NoError(t, worker.EnsureJobStream(jetstreamContext, natsCfg))

	// Creating the stream twice is a no-op.
	require.NoError(t, worker.EnsureJobStream(jetstreamContext, natsCfg))

	book := &core.Book{ID: uuid.New(), Content: "One. Two. Three."}
	job := newTestJob(book.ID)
	jobs := newMemJobs(job)
	synth := &fakeSynth{segment: makeWAV(t, 800)}

	runner := worker.NewRunner(
		jobs, newMemBooks(book), synth, newMemStore(), &memSink{},
		defaultOptions(), testLogger(t),
	)
	queueWorker := worker.NewWorker(jetstreamContext, natsCfg, runner, testLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workerDone := make(chan error, 1)

	go func() {
		workerDone <- queueWorker.Run(ctx)
	}()

	dispatcher := worker.NewDispatcher(jetstreamContext, natsCfg.JobSubject)
	require.NoError(t, dispatcher.Dispatch(ctx, job.ID))

	require.Eventually(t, func() bool {
		current, err := jobs.GetByID(ctx, job.ID)

		return err == nil && current.Status == core.JobStatusCompleted
	}, 20*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-workerDone)

	final, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, final.Progress)
	assert.NotEmpty(t, final.FilePath)
}
