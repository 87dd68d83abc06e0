package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"simloop/internal/logging"
	"simloop/internal/testsupport"
)

type fakeEncoder struct {
	calls  int
	input  string
	outDir string
	err    error
}

func (f *fakeEncoder) Encode(_ context.Context, inputPath, outputDir string, progress func(Progress)) (string, error) {
	f.calls++
	f.input = inputPath
	f.outDir = outputDir
	if f.err != nil {
		return "", f.err
	}
	progress(Progress{Stage: "encoding", Percent: 50})
	progress(Progress{Stage: "complete", Percent: 100})
	return ArchivePath(inputPath, outputDir), nil
}

func TestArchiveEncodesVideoCaptures(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip3.mp4")
	testsupport.WriteFile(t, input, 1024)
	outDir := filepath.Join(dir, "archive")

	enc := &fakeEncoder{}
	tr := New(enc, outDir, logging.NewNop())
	out, err := tr.Archive(context.Background(), input)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if want := filepath.Join(outDir, "clip3.mkv"); out != want {
		t.Fatalf("output %q, want %q", out, want)
	}
	if enc.calls != 1 || enc.input != input || enc.outDir != outDir {
		t.Fatalf("unexpected encoder call %#v", enc)
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		t.Fatalf("archive directory not created: %v", err)
	}
}

func TestArchiveRejectsStillCaptures(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip1.gif")
	testsupport.WriteFile(t, input, 16)

	enc := &fakeEncoder{}
	_, err := New(enc, dir, nil).Archive(context.Background(), input)
	if !errors.Is(err, ErrNotVideo) {
		t.Fatalf("expected ErrNotVideo, got %v", err)
	}
	if enc.calls != 0 {
		t.Fatal("encoder should not run for still captures")
	}
}

func TestArchiveMissingInput(t *testing.T) {
	enc := &fakeEncoder{}
	if _, err := New(enc, t.TempDir(), nil).Archive(context.Background(), "/nonexistent/clip1.mp4"); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestArchiveWrapsEncoderError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip1.mp4")
	testsupport.WriteFile(t, input, 16)

	boom := errors.New("svt-av1 crashed")
	_, err := New(&fakeEncoder{err: boom}, dir, nil).Archive(context.Background(), input)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped encoder error, got %v", err)
	}
}

func TestEligible(t *testing.T) {
	tests := map[string]bool{
		"clip1.mp4": true,
		"clip1.MKV": true,
		"clip1.gif": false,
		"shot.png":  false,
		"noext":     false,
		"a/b/c.mov": true,
	}
	for path, want := range tests {
		if got := Eligible(path); got != want {
			t.Errorf("Eligible(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLibraryValidatesArguments(t *testing.T) {
	lib := NewLibrary()
	if _, err := lib.Encode(context.Background(), "", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := lib.Encode(context.Background(), "in.mp4", "  ", nil); err == nil {
		t.Fatal("expected error for empty output dir")
	}
}

func TestReporterForwardsProgress(t *testing.T) {
	var got []Progress
	r := &reporter{callback: func(p Progress) { got = append(got, p) }}
	r.Warning("low disk")
	r.OperationComplete("done")
	if len(got) != 2 || got[0].Stage != "warning" || got[1].Percent != 100 {
		t.Fatalf("unexpected progress %#v", got)
	}
}
