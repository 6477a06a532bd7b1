package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven/mocks"
	"github.com/thewatergategroups/info-vault/internal/core/services"
	"github.com/thewatergategroups/info-vault/internal/parser"
)

// stubIngestion implements driving.IngestionService for testing
type stubIngestion struct {
	mu       sync.Mutex
	seen     []string
	delay    time.Duration
	started  chan string
	ingestFn func(meta *domain.DocumentMetadata) (*domain.IngestResult, error)
}

func newStubIngestion() *stubIngestion {
	return &stubIngestion{started: make(chan string, 16)}
}

func (s *stubIngestion) Ingest(ctx context.Context, meta *domain.DocumentMetadata) (*domain.IngestResult, error) {
	s.started <- meta.ID
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.seen = append(s.seen, meta.ID)
	s.mu.Unlock()
	if s.ingestFn != nil {
		return s.ingestFn(meta)
	}
	return &domain.IngestResult{DocumentID: meta.ID, Chunks: 1}, nil
}

func (s *stubIngestion) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func meta(id string) *domain.DocumentMetadata {
	return &domain.DocumentMetadata{ID: id, StorageKey: id + "_a.txt", ContentType: "text/plain", Filename: "a.txt"}
}

func startWorker(t *testing.T, ingestion *stubIngestion) (*Worker, *mocks.MockSubscription) {
	t.Helper()
	subscriber := mocks.NewMockSubscriber()
	w := NewWorker(WorkerConfig{Subscriber: subscriber, Ingestion: ingestion})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, subscriber.Latest()
}

func TestNewWorker(t *testing.T) {
	w := NewWorker(WorkerConfig{})
	assert.NotNil(t, w.logger)
	assert.Equal(t, StateIdle, w.State())
}

func TestWorker_SubscribeFailureIsFatal(t *testing.T) {
	subscriber := mocks.NewMockSubscriber()
	subscriber.SubscribeFn = func() error { return errors.New("connection refused") }
	w := NewWorker(WorkerConfig{Subscriber: subscriber, Ingestion: newStubIngestion()})

	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateStopped, w.State())
	assert.False(t, w.Health(context.Background()).Running)
}

func TestWorker_ProcessesDataMessages(t *testing.T) {
	ingestion := newStubIngestion()
	w, sub := startWorker(t, ingestion)
	assert.Equal(t, StateListening, w.State())

	require.NoError(t, sub.SendMetadata(meta("doc-1")))
	require.NoError(t, sub.SendMetadata(meta("doc-2")))

	assert.Eventually(t, func() bool { return len(ingestion.Seen()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"doc-1", "doc-2"}, ingestion.Seen())
	assert.Eventually(t, func() bool { return w.Health(context.Background()).Processed == 2 }, time.Second, 5*time.Millisecond)
}

func TestWorker_IgnoresControlAndDropsMalformed(t *testing.T) {
	ingestion := newStubIngestion()
	w, sub := startWorker(t, ingestion)

	sub.Send(domain.NotificationMessage{Kind: domain.MessageKindControl, Channel: "documents"})
	sub.Send(domain.NotificationMessage{Kind: domain.MessageKindData, Channel: "documents", Payload: []byte("{not json")})
	sub.Send(domain.NotificationMessage{Kind: domain.MessageKindData, Channel: "documents", Payload: []byte(`{"id":"x"}`)})
	require.NoError(t, sub.SendMetadata(meta("doc-ok")))

	assert.Eventually(t, func() bool { return len(ingestion.Seen()) == 1 }, time.Second, 5*time.Millisecond)
	health := w.Health(context.Background())
	assert.Equal(t, int64(3), health.Received)
	assert.Equal(t, int64(2), health.Dropped)
	assert.Equal(t, StateListening, w.State())
}

func TestWorker_ItemErrorsDoNotStopLoop(t *testing.T) {
	ingestion := newStubIngestion()
	ingestion.ingestFn = func(m *domain.DocumentMetadata) (*domain.IngestResult, error) {
		switch m.ID {
		case "missing":
			return nil, domain.ErrNotFound
		case "corrupt":
			return nil, domain.NewParseError("a.txt", "text/plain", errors.New("bad bytes"))
		case "outage":
			return nil, errors.New("storage timeout")
		}
		return &domain.IngestResult{DocumentID: m.ID}, nil
	}
	w, sub := startWorker(t, ingestion)

	for _, id := range []string{"missing", "corrupt", "outage", "fine"} {
		require.NoError(t, sub.SendMetadata(meta(id)))
	}

	assert.Eventually(t, func() bool { return w.Health(context.Background()).Processed == 1 }, time.Second, 5*time.Millisecond)
	health := w.Health(context.Background())
	assert.Equal(t, int64(2), health.Dropped)
	assert.Equal(t, int64(1), health.Failed)
	assert.NotNil(t, health.LastProcessed)
}

func TestWorker_StopLetsInFlightItemFinish(t *testing.T) {
	ingestion := newStubIngestion()
	ingestion.delay = 100 * time.Millisecond
	subscriber := mocks.NewMockSubscriber()
	w := NewWorker(WorkerConfig{Subscriber: subscriber, Ingestion: ingestion})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	sub := subscriber.Latest()

	require.NoError(t, sub.SendMetadata(meta("slow")))
	select {
	case <-ingestion.started:
	case <-time.After(time.Second):
		t.Fatal("ingestion did not start")
	}
	assert.Equal(t, StateProcessing, w.State())

	cancel()
	w.Stop()

	assert.Equal(t, []string{"slow"}, ingestion.Seen())
	assert.Equal(t, StateStopped, w.State())
	assert.True(t, sub.Closed())
}

func TestWorker_NoNewItemsAfterStop(t *testing.T) {
	ingestion := newStubIngestion()
	w, sub := startWorker(t, ingestion)

	w.Stop()
	require.NoError(t, sub.SendMetadata(meta("late")))
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, ingestion.Seen())
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_StopDuringItemSkipsQueuedMessages(t *testing.T) {
	for run := 0; run < 20; run++ {
		ingestion := newStubIngestion()
		ingestion.delay = 30 * time.Millisecond
		subscriber := mocks.NewMockSubscriber()
		w := NewWorker(WorkerConfig{Subscriber: subscriber, Ingestion: ingestion})
		require.NoError(t, w.Start(context.Background()))
		sub := subscriber.Latest()

		require.NoError(t, sub.SendMetadata(meta("in-flight")))
		select {
		case <-ingestion.started:
		case <-time.After(time.Second):
			t.Fatal("ingestion did not start")
		}
		for i := 0; i < 10; i++ {
			require.NoError(t, sub.SendMetadata(meta("queued")))
		}

		w.Stop()

		require.Equal(t, []string{"in-flight"}, ingestion.Seen(), "run %d", run)
		assert.Equal(t, StateStopped, w.State())
	}
}

func TestWorker_SubscriptionClosedEndsLoop(t *testing.T) {
	w, sub := startWorker(t, newStubIngestion())

	require.NoError(t, sub.Close())

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker loop did not exit after subscription closed")
	}
	assert.Equal(t, StateStopped, w.State())
}

func TestWorker_NotesScenario(t *testing.T) {
	blobs := mocks.NewMockBlobStore()
	blobs.Seed("doc-1_notes.txt", []byte("first line\nsecond line\nthird line\n"))
	backend := mocks.NewMockIndexBackend("vespa")

	ingestion, err := services.NewIngestionService(services.IngestionConfig{
		BlobStore: blobs,
		Parser:    parser.DefaultRegistry(),
		Backends:  []driven.IndexBackend{backend},
	})
	require.NoError(t, err)
	defer ingestion.Close()

	subscriber := mocks.NewMockSubscriber()
	w := NewWorker(WorkerConfig{Subscriber: subscriber, Ingestion: ingestion})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, subscriber.Latest().SendMetadata(&domain.DocumentMetadata{
		ID: "doc-1", StorageKey: "doc-1_notes.txt", ContentType: "text/plain", Filename: "notes.txt",
	}))

	assert.Eventually(t, func() bool { return len(backend.Chunks("doc-1")) == 3 }, time.Second, 5*time.Millisecond)
	for i, c := range backend.Chunks("doc-1") {
		assert.Equal(t, i+1, c.Position)
		assert.Equal(t, "notes.txt", c.Source)
	}
}
