package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/snapsight/client/internal/api"
	"github.com/snapsight/client/internal/imaging"
	"github.com/snapsight/client/internal/models"
	"github.com/snapsight/client/internal/resultcache"
	"github.com/snapsight/client/internal/session"
)

type fakeSlots struct {
	mu       sync.Mutex
	requests int
	err      error
}

func (f *fakeSlots) RequestUploadSlot(_ context.Context, fileName, contentType string) (models.UploadSlot, error) {
	f.mu.Lock()
	f.requests++
	n := f.requests
	f.mu.Unlock()
	if f.err != nil {
		return models.UploadSlot{}, f.err
	}
	key := fmt.Sprintf("users/usr_1/posts/%d-%s", n, fileName)
	return models.UploadSlot{
		UploadURL: "https://bucket.example/" + key + "?sig=abc",
		FileKey:   key,
		AccessURL: "https://bucket.example/" + key,
		ExpiresIn: 300,
		MaxSize:   5 << 20,
	}, nil
}

func (f *fakeSlots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeUploader struct {
	err     error
	steps   []int
	started chan struct{}
	release chan struct{}
}

func (f *fakeUploader) Put(_ context.Context, _ string, _ imaging.File, onProgress func(int)) error {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return f.err
	}
	steps := f.steps
	if steps == nil {
		steps = []int{25, 50, 75, 100}
	}
	for _, p := range steps {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return nil
}

type fakeAnalyzer struct {
	err    error
	result models.AnalysisResult
	gotReq models.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	f.gotReq = req
	if f.err != nil {
		return models.AnalysisResult{}, f.err
	}
	return f.result, nil
}

func fixtureResult() models.AnalysisResult {
	return models.AnalysisResult{
		Curation: models.Curation{IsAppropriate: true, Labels: []string{"outdoor"}, Risk: models.RiskLow},
		Caption:  models.Caption{Text: "Sunset hues over the quiet coastline.", Alternatives: []string{"Golden hour by the sea."}},
		Songs:    []models.Song{{Title: "Sunset Lover", Artist: "Petit Biscuit", Reason: "Warm sunset mood"}},
		Topics:   []models.Topic{{Topic: "Travel", Confidence: 0.94}},
		Engagement: models.Engagement{
			EstimatedScore: 0.78,
			Drivers:        []string{"color palette"},
			Suggestions:    []string{"Add a human subject"},
		},
		Meta: models.Meta{Language: "en", GeneratedAt: time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)},
	}
}

func signedInStore(t *testing.T) session.Store {
	t.Helper()
	store := session.NewMemoryStore()
	if err := store.Set("tok", session.Options{}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func smallFile() imaging.File {
	return imaging.File{Name: "pic.png", ContentType: imaging.ContentTypePNG, Data: []byte("png-bytes")}
}

func TestRunHappyPath(t *testing.T) {
	slots := &fakeSlots{}
	analyzer := &fakeAnalyzer{result: fixtureResult()}
	results := resultcache.NewMemorySlot()
	w := New(slots, &fakeUploader{}, analyzer, signedInStore(t), results, Config{}, nil)

	var progress []int
	w.OnProgress = func(p int) { progress = append(progress, p) }

	record, err := w.Run(context.Background(), smallFile())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if w.State() != StateSuccess {
		t.Fatalf("expected success state got %s", w.State())
	}
	if record.AccessURL == "" {
		t.Fatal("expected access url attached to the record")
	}
	if !reflect.DeepEqual(record.AnalysisResult, analyzer.result) {
		t.Fatal("expected analysis payload passed through unchanged")
	}

	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("expected progress to reach 100, got %v", progress)
	}

	// Round trip through the result slot must be deep-equal.
	stored, ok := results.Take()
	if !ok {
		t.Fatal("expected record persisted to the result slot")
	}
	if !reflect.DeepEqual(stored, record) {
		t.Fatalf("slot round trip mismatch:\n got %+v\nwant %+v", stored, record)
	}
}

func TestRunRequestShape(t *testing.T) {
	analyzer := &fakeAnalyzer{result: fixtureResult()}
	w := New(&fakeSlots{}, &fakeUploader{}, analyzer, signedInStore(t), resultcache.NewMemorySlot(), Config{}, nil)

	if _, err := w.Run(context.Background(), smallFile()); err != nil {
		t.Fatalf("run: %v", err)
	}

	req := analyzer.gotReq
	if !reflect.DeepEqual(req.Tasks, models.AllTasks()) {
		t.Fatalf("expected all tasks requested got %v", req.Tasks)
	}
	if req.Language != "id" {
		t.Fatalf("expected default language id got %q", req.Language)
	}
	if req.Limits.MaxSongs != 5 || req.Limits.MaxTopics != 8 {
		t.Fatalf("unexpected limits %+v", req.Limits)
	}
}

func TestRunUnauthenticatedShortCircuits(t *testing.T) {
	slots := &fakeSlots{}
	w := New(slots, &fakeUploader{}, &fakeAnalyzer{}, session.NewMemoryStore(), resultcache.NewMemorySlot(), Config{}, nil)

	_, err := w.Run(context.Background(), smallFile())
	if !errors.Is(err, api.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated got %v", err)
	}
	if w.State() != StateError {
		t.Fatalf("expected error state got %s", w.State())
	}
	if slots.count() != 0 {
		t.Fatal("expected no slot request without a credential")
	}
}

func TestRunSingleFlight(t *testing.T) {
	uploader := &fakeUploader{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	w := New(&fakeSlots{}, uploader, &fakeAnalyzer{result: fixtureResult()}, signedInStore(t), resultcache.NewMemorySlot(), Config{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := w.Run(context.Background(), smallFile())
		done <- err
	}()

	<-uploader.started

	// A second start while the first run is mid-upload must be rejected
	// without disturbing it.
	if _, err := w.Run(context.Background(), smallFile()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy got %v", err)
	}

	close(uploader.release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if w.State() != StateSuccess {
		t.Fatalf("expected first run to succeed, state %s", w.State())
	}
}

func TestRunFreshSlotPerRun(t *testing.T) {
	slots := &fakeSlots{}
	w := New(slots, &fakeUploader{}, &fakeAnalyzer{result: fixtureResult()}, signedInStore(t), resultcache.NewMemorySlot(), Config{}, nil)

	if _, err := w.Run(context.Background(), smallFile()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Finished runs stay terminal until reset.
	if _, err := w.Run(context.Background(), smallFile()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy before reset got %v", err)
	}

	w.Reset()
	if w.State() != StateIdle {
		t.Fatalf("expected idle after reset got %s", w.State())
	}
	if _, err := w.Run(context.Background(), smallFile()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if slots.count() != 2 {
		t.Fatalf("expected a fresh slot per run, saw %d requests", slots.count())
	}
}

func TestRunAnalysisFailurePreservesReason(t *testing.T) {
	analyzer := &fakeAnalyzer{err: fmt.Errorf("%w: Image URL not accessible", api.ErrAnalysisNotFound)}
	results := resultcache.NewMemorySlot()
	w := New(&fakeSlots{}, &fakeUploader{}, analyzer, signedInStore(t), results, Config{}, nil)

	_, err := w.Run(context.Background(), smallFile())
	if !errors.Is(err, api.ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound got %v", err)
	}
	if w.State() != StateError {
		t.Fatalf("expected error state got %s", w.State())
	}
	if w.Err() != err.Error() {
		t.Fatalf("expected verbatim reason %q got %q", err.Error(), w.Err())
	}
	if _, ok := results.Peek(); ok {
		t.Fatal("failed runs must not write the result slot")
	}
}

func TestRunUploadFailure(t *testing.T) {
	w := New(&fakeSlots{}, &fakeUploader{err: errors.New("storage responded 403")}, &fakeAnalyzer{}, signedInStore(t), resultcache.NewMemorySlot(), Config{}, nil)

	if _, err := w.Run(context.Background(), smallFile()); err == nil {
		t.Fatal("expected upload failure to abort the run")
	}
	if w.State() != StateError {
		t.Fatalf("expected error state got %s", w.State())
	}

	// The run is recoverable by explicit reset, not by retrying in place.
	w.Reset()
	if w.State() != StateIdle {
		t.Fatalf("expected idle after reset got %s", w.State())
	}
}

func TestRunSlotRequestFailure(t *testing.T) {
	slots := &fakeSlots{err: fmt.Errorf("%w", api.ErrUnauthorized)}
	w := New(slots, &fakeUploader{}, &fakeAnalyzer{}, signedInStore(t), resultcache.NewMemorySlot(), Config{}, nil)

	if _, err := w.Run(context.Background(), smallFile()); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized got %v", err)
	}
	if w.State() != StateError {
		t.Fatalf("expected error state got %s", w.State())
	}
}
