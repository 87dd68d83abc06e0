package app_test

import (
	"context"
	"errors"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"simloop/internal/app"
	"simloop/internal/capture"
	"simloop/internal/config"
	"simloop/internal/logging"
	"simloop/internal/sessions"
	"simloop/internal/sim"
	"simloop/internal/testsupport"
	"simloop/internal/transcode"
)

func runApp(t *testing.T, opts app.Options) (app.Summary, error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	a, err := app.New(opts)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	summary, err := a.Run(ctx)
	if ctx.Err() != nil {
		t.Fatal("run did not finish before the test deadline")
	}
	return summary, err
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Frames = 5

	summary, err := runApp(t, app.Options{Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Frames != 5 {
		t.Fatalf("presented %d frames, want 5", summary.Frames)
	}
	if summary.Simulation != sim.OrbitName {
		t.Fatalf("simulation %q, want %q", summary.Simulation, sim.OrbitName)
	}
	if summary.Steps == 0 {
		t.Fatal("expected the simulation to step")
	}
	if len(summary.Captures) != 0 {
		t.Fatalf("capture disabled, got %d captures", len(summary.Captures))
	}
}

func TestRunWithoutAutoStartNeverSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Frames = 3
	cfg.Worker.AutoStart = false

	summary, err := runApp(t, app.Options{Config: cfg})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Steps != 0 {
		t.Fatalf("stepped %d times without a start", summary.Steps)
	}
}

func TestGIFCaptureIsPersistedAndRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapture("gif", 3))
	store := testsupport.MustOpenStore(t, cfg)

	summary, err := runApp(t, app.Options{Config: cfg, Store: store, ExitAfterCapture: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Captures) != 1 {
		t.Fatalf("expected one capture, got %d", len(summary.Captures))
	}
	res := summary.Captures[0]
	if res.Err != nil {
		t.Fatalf("capture failed: %v", res.Err)
	}
	if want := filepath.Join(cfg.Paths.CaptureDir, "clip1.gif"); res.Path != want {
		t.Fatalf("path %q, want %q", res.Path, want)
	}
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatalf("open capture: %v", err)
	}
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Fatalf("gif has %d frames, want 3", len(anim.Image))
	}
	if b := anim.Image[0].Bounds(); b.Dx() != cfg.Worker.Width || b.Dy() != cfg.Worker.Height {
		t.Fatalf("gif frame is %dx%d", b.Dx(), b.Dy())
	}

	rec, err := store.Get(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if rec.Status != sessions.StatusCompleted || rec.Frames != 3 || rec.OutputPath != res.Path {
		t.Fatalf("unexpected session record %#v", rec)
	}
	if rec.Bytes != res.Bytes || rec.Bytes == 0 {
		t.Fatalf("recorded %d bytes, result has %d", rec.Bytes, res.Bytes)
	}
}

func TestSnapshotEmbedsSimulationState(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCapture("png", 0))
	cfg.Capture.Supersample = 2

	summary, err := runApp(t, app.Options{
		Config:           cfg,
		Params:           map[string]string{"speed": "2.5"},
		ExitAfterCapture: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Captures) != 1 {
		t.Fatalf("expected one capture, got %d", len(summary.Captures))
	}
	data, err := os.ReadFile(summary.Captures[0].Path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	payload, ok := capture.ExtractPayload(data)
	if !ok {
		t.Fatal("snapshot has no payload")
	}
	for _, want := range []string{"orbit", "speed", "2.5"} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload %q missing %q", payload, want)
		}
	}
}

func TestVideoCaptureIsArchived(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithCapture("h264", 2))
	cfg.Transcode.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)
	enc := &fakeArchiver{}

	summary, err := runApp(t, app.Options{
		Config:           cfg,
		Store:            store,
		Transcoder:       transcode.New(enc, cfg.Transcode.OutputDir, nil),
		ExitAfterCapture: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Captures) != 1 {
		t.Fatalf("expected one capture, got %d", len(summary.Captures))
	}
	res := summary.Captures[0]
	if res.Err != nil {
		t.Fatalf("capture failed: %v", res.Err)
	}
	if want := filepath.Join(cfg.Paths.CaptureDir, "clip1.mp4"); res.Path != want {
		t.Fatalf("path %q, want %q", res.Path, want)
	}
	if want := int64(2 * cfg.Worker.Width * cfg.Worker.Height * 4); res.Bytes != want {
		t.Fatalf("raw stub output is %d bytes, want %d", res.Bytes, want)
	}
	if want := filepath.Join(cfg.Transcode.OutputDir, "clip1.mkv"); res.TranscodedPath != want {
		t.Fatalf("archive path %q, want %q", res.TranscodedPath, want)
	}
	rec, err := store.Get(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if rec.TranscodedPath != res.TranscodedPath {
		t.Fatalf("recorded archive path %q", rec.TranscodedPath)
	}
}

func TestUnknownSimulationFailsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSimulation("nope"))

	_, err := runApp(t, app.Options{Config: cfg})
	if !errors.Is(err, sim.ErrUnknownSimulation) {
		t.Fatalf("expected ErrUnknownSimulation, got %v", err)
	}
}

func TestInvalidParamFailsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	_, err := runApp(t, app.Options{Config: cfg, Params: map[string]string{"missing": "1"}})
	if err == nil {
		t.Fatal("expected error for unknown parameter")
	}
}

func TestSimulationStepErrorEndsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSimulation(sim.RippleName))

	_, err := runApp(t, app.Options{Config: cfg, Params: map[string]string{"wave": "0.9"}})
	if err == nil || !strings.Contains(err.Error(), sim.RippleName) {
		t.Fatalf("expected ripple step error, got %v", err)
	}
}

func TestSecondRunIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held := flock.New(cfg.LockPath())
	if ok, err := held.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()

	_, err := runApp(t, app.Options{Config: cfg})
	if !errors.Is(err, app.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestCancelEndsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	a, err := app.New(app.Options{Config: cfg})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := a.Run(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestRunIsOneShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.Frames = 2
	a, err := app.New(app.Options{Config: cfg, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := a.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := a.Run(ctx); !errors.Is(err, app.ErrAlreadyRun) {
		t.Fatalf("second Run err = %v, want ErrAlreadyRun", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := app.New(app.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
	cfg := config.Default()
	cfg.Worker.FPS = 0
	if _, err := app.New(app.Options{Config: &cfg}); err == nil {
		t.Fatal("expected error for zero fps")
	}
}

type fakeArchiver struct{}

func (fakeArchiver) Encode(_ context.Context, inputPath, outputDir string, _ func(transcode.Progress)) (string, error) {
	return transcode.ArchivePath(inputPath, outputDir), nil
}
