package dispatcher_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flowshot-io/zipctx/pkg/archiver"
	"github.com/flowshot-io/zipctx/pkg/dispatcher"
	"github.com/flowshot-io/zipctx/pkg/extractor"
	"github.com/flowshot-io/zipctx/pkg/fault"
	"github.com/flowshot-io/zipctx/pkg/logger"
)

type fakeOps struct {
	compressed []string
	extracted  []string
	err        error
	panicWith  interface{}
}

func (f *fakeOps) Compress(source, destination string) (archiver.Summary, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.compressed = append(f.compressed, source)
	return archiver.Summary{Source: source}, f.err
}

func (f *fakeOps) Extract(archivePath, destination string) (extractor.Summary, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.extracted = append(f.extracted, archivePath)
	return extractor.Summary{Archive: archivePath}, f.err
}

func newDispatcher(ops *fakeOps, buf *bytes.Buffer) *dispatcher.Dispatcher {
	return dispatcher.New(&dispatcher.Options{
		Compressor: ops,
		Unpacker:   ops,
		Logger:     logger.New(&logger.Options{Out: buf}),
	})
}

func TestRun(t *testing.T) {
	t.Run("Compress", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{}

		ok := newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "/data/project", Compress: true})
		if !ok {
			t.Fatalf("expected success")
		}
		if len(ops.compressed) != 1 || ops.compressed[0] != "/data/project" {
			t.Errorf("compressed = %v", ops.compressed)
		}
		if len(ops.extracted) != 0 {
			t.Errorf("extract should not run")
		}
		if !strings.Contains(buf.String(), "Operation completed") {
			t.Errorf("missing completion line in %q", buf.String())
		}
	})

	t.Run("Extract", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{}

		ok := newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "/data/a.zip", Extract: true})
		if !ok {
			t.Fatalf("expected success")
		}
		if len(ops.extracted) != 1 || ops.extracted[0] != "/data/a.zip" {
			t.Errorf("extracted = %v", ops.extracted)
		}
	})

	t.Run("Compress wins over extract", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{}

		newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "/x", Compress: true, Extract: true})
		if len(ops.compressed) != 1 || len(ops.extracted) != 0 {
			t.Errorf("compressed=%v extracted=%v", ops.compressed, ops.extracted)
		}
	})

	t.Run("No mode fails", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{}

		if newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "/x"}) {
			t.Fatalf("expected failure")
		}
		if len(ops.compressed)+len(ops.extracted) != 0 {
			t.Errorf("no operation should run")
		}
		if !strings.Contains(buf.String(), "Operation failed") {
			t.Errorf("missing failure line in %q", buf.String())
		}
	})

	t.Run("Operation error fails", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{err: fault.New("extract", fault.KindCorruptArchive, "a.zip", errors.New("bad crc"))}

		if newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "a.zip", Extract: true}) {
			t.Fatalf("expected failure")
		}
		if !strings.Contains(buf.String(), "corrupt_archive") {
			t.Errorf("expected error kind in log, got %q", buf.String())
		}
	})

	t.Run("Panic is contained", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{panicWith: "boom"}

		if newDispatcher(ops, &buf).Run(dispatcher.Invocation{Path: "/x", Compress: true}) {
			t.Fatalf("expected failure")
		}
		out := buf.String()
		if !strings.Contains(out, "boom") || !strings.Contains(out, "stack") {
			t.Errorf("expected panic value and stack in log, got %q", out)
		}
	})

	t.Run("Input is logged", func(t *testing.T) {
		var buf bytes.Buffer
		ops := &fakeOps{}

		newDispatcher(ops, &buf).Run(dispatcher.Invocation{
			WorkDir:  "/home/user",
			Path:     "project",
			Compress: true,
		})
		out := buf.String()
		for _, want := range []string{`"message":"Input"`, `"path":"project"`, `"compress":true`} {
			if !strings.Contains(out, want) {
				t.Errorf("log missing %q in %q", want, out)
			}
		}
	})
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Options{Out: &buf})

	dispatcher.Banner(log, []string{"zipctx", "--bogus", "project"}, "/home/user")

	out := buf.String()
	for _, want := range []string{"zipctx starting", `"dir":"/home/user"`, `"args":["zipctx","--bogus","project"]`} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q in %q", want, out)
		}
	}
}

func TestInvocation(t *testing.T) {
	cases := []struct {
		inv  dispatcher.Invocation
		mode dispatcher.Mode
	}{
		{dispatcher.Invocation{}, dispatcher.ModeNone},
		{dispatcher.Invocation{Compress: true}, dispatcher.ModeCompress},
		{dispatcher.Invocation{Extract: true}, dispatcher.ModeExtract},
		{dispatcher.Invocation{Compress: true, Extract: true}, dispatcher.ModeCompress},
	}
	for _, c := range cases {
		if got := c.inv.Mode(); got != c.mode {
			t.Errorf("Mode(%+v) = %s, want %s", c.inv, got, c.mode)
		}
	}

	rel := dispatcher.Invocation{WorkDir: "/home/user", Path: "docs"}
	if got := rel.Target(); got != filepath.Join("/home/user", "docs") {
		t.Errorf("Target() = %q", got)
	}

	abs := dispatcher.Invocation{WorkDir: "/home/user", Path: "/srv/docs"}
	if got := abs.Target(); got != "/srv/docs" {
		t.Errorf("Target() = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	if dispatcher.ExitCode(true) != 0 {
		t.Errorf("success should exit 0")
	}
	if dispatcher.ExitCode(false) != 1 {
		t.Errorf("failure should exit 1")
	}
}
