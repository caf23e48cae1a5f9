package source

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"

	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/git"
	"github.com/ruminaider/editor-kit/internal/logging"
)

// Fetcher materializes a remote source tree in a scratch directory.
type Fetcher struct {
	// Out receives the progress spinner. Nil disables it.
	Out io.Writer
	// Clone defaults to a shallow git clone.
	Clone func(url, dst, ref string) error
	Log   *slog.Logger
}

// Fetch clones url into a scratch directory. The directory is registered
// with the exit handler and removed by Tree.Close.
func (f *Fetcher) Fetch(url, ref string) (*Tree, error) {
	clone := f.Clone
	if clone == nil {
		if !git.Available() {
			return nil, fmt.Errorf("fetching %s: git is not installed", url)
		}
		clone = git.ShallowClone
	}
	log := f.Log
	if log == nil {
		log = logging.For("source")
	}

	scratch, err := os.MkdirTemp("", "editor-kit-src-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	unregister := cleanup.RegisterPath(scratch)
	release := func() {
		os.RemoveAll(scratch)
		unregister()
	}

	dst := filepath.Join(scratch, "tree")
	log.Debug("fetching source", "url", url, "ref", ref, "dir", dst)

	var s *spinner.Spinner
	if f.Out != nil {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f.Out))
		s.Suffix = " Fetching " + url
		s.Start()
	}
	err = clone(url, dst, ref)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("fetching source: %w", err)
	}

	t, err := Open(dst)
	if err != nil {
		release()
		return nil, err
	}
	if git.IsRepo(dst) {
		if sha, err := git.HeadSHA(dst); err == nil {
			log.Debug("fetched source", "url", url, "sha", sha)
		}
	}
	t.release = release
	return t, nil
}

// Resolve picks the source tree: dir when it exists, otherwise a fresh clone
// of url. With neither available the error is a MissingError.
func Resolve(dir, url, ref string, f *Fetcher) (*Tree, error) {
	if dir != "" {
		t, err := Open(dir)
		if err == nil {
			return t, nil
		}
		if url == "" {
			return nil, err
		}
	}
	if url == "" {
		return nil, &MissingError{What: "source directory", Path: "(none given; pass --source or --source-url)"}
	}
	if f == nil {
		f = &Fetcher{}
	}
	return f.Fetch(url, ref)
}
