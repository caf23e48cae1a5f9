// Package filesync copies category trees and single files into an editor's
// directory layout, asking the conflict resolver before touching anything
// that already exists.
package filesync

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/conflict"
	"github.com/ruminaider/editor-kit/internal/logging"
	"github.com/ruminaider/editor-kit/internal/paths"
)

// Include reports whether a file, given by its slash-separated path relative
// to the tree root, should be copied.
type Include func(rel string) bool

// Report collects what a sync did, or would do in a dry run.
type Report struct {
	Written     []string
	Overwritten []string
	Skipped     []string
	Replaced    []string
	Backups     []conflict.BackupRecord
}

// Changed reports whether anything was written or removed.
func (r *Report) Changed() bool {
	return len(r.Written)+len(r.Overwritten)+len(r.Replaced) > 0
}

// Syncer performs writes for one run.
type Syncer struct {
	Resolver *conflict.Resolver
	DryRun   bool
	Log      *slog.Logger
	// Now stamps backup names. Defaults to time.Now.
	Now func() time.Time
	// Out receives one line per planned change in a dry run. Nil discards.
	Out    io.Writer
	Report Report
}

// New returns a Syncer that resolves conflicts with r.
func New(r *conflict.Resolver, dryRun bool) *Syncer {
	return &Syncer{
		Resolver: r,
		DryRun:   dryRun,
		Log:      logging.For("filesync"),
		Now:      time.Now,
	}
}

var housekeeping = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	".git":        true,
}

// IsHousekeeping reports whether name is a platform or VCS file that is never
// copied and never counts as content.
func IsHousekeeping(name string) bool {
	return housekeeping[name] || strings.HasPrefix(name, "._")
}

// HasContent reports whether dir exists and holds anything besides
// housekeeping files.
func HasContent(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if !IsHousekeeping(e.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// CopyTree copies every file under src into dest. A dest that already has
// content raises one directory-level conflict first.
func (s *Syncer) CopyTree(src, dest string, include Include) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading source %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	scope := s.Resolver.Fresh(dest)
	has, err := HasContent(dest)
	if err != nil {
		return err
	}
	if has {
		scope, err = s.Resolver.Dir(dest)
		if err != nil {
			return err
		}
		s.Log.Debug("directory conflict", "dest", dest, "mode", scope.Mode, "action", scope.Action())
		if scope.Mode == conflict.DirReplace {
			if err := s.replace(dest); err != nil {
				return err
			}
		}
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		if IsHousekeeping(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if include != nil && !include(filepath.ToSlash(rel)) {
			return nil
		}
		return s.copyFile(path, filepath.Join(dest, rel), scope)
	})
}

// CopyFile copies one file, resolving a conflict on dest on its own.
func (s *Syncer) CopyFile(src, dest string) error {
	return s.copyFile(src, dest, s.Resolver.Fresh(filepath.Dir(dest)))
}

func (s *Syncer) replace(dest string) error {
	s.Report.Replaced = append(s.Report.Replaced, dest)
	if s.DryRun {
		s.would("replace directory %s", paths.Display(dest))
		return nil
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing %s: %w", dest, err)
	}
	return nil
}

// prepare resolves a pending write to dest and makes the backup when asked
// to. It returns false when the write must be skipped.
func (s *Syncer) prepare(dest string, resolve func(string) (conflict.Action, error)) (bool, bool, error) {
	_, err := os.Lstat(dest)
	if os.IsNotExist(err) {
		return true, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("checking %s: %w", dest, err)
	}

	action, err := resolve(dest)
	if err != nil {
		return false, false, err
	}
	switch action {
	case conflict.Skip:
		s.Report.Skipped = append(s.Report.Skipped, dest)
		s.Log.Debug("skip existing", "path", dest)
		return false, true, nil
	case conflict.Backup:
		if err := s.backup(dest); err != nil {
			return false, true, err
		}
	}
	return true, true, nil
}

func (s *Syncer) backup(path string) error {
	now := s.now()
	if s.DryRun {
		name, err := conflict.BackupPath(path, now)
		if err != nil {
			return err
		}
		s.Report.Backups = append(s.Report.Backups, conflict.BackupRecord{Original: path, Path: name})
		s.would("back up %s to %s", paths.Display(path), paths.Display(name))
		return nil
	}
	rec, err := conflict.MakeBackup(path, now)
	if err != nil {
		return err
	}
	s.Report.Backups = append(s.Report.Backups, rec)
	s.Log.Debug("backed up", "path", path, "backup", rec.Path)
	return nil
}

func (s *Syncer) record(dest string, existed bool) {
	if existed {
		s.Report.Overwritten = append(s.Report.Overwritten, dest)
	} else {
		s.Report.Written = append(s.Report.Written, dest)
	}
}

func (s *Syncer) copyFile(src, dest string, scope *conflict.DirScope) error {
	ok, existed, err := s.prepare(dest, scope.File)
	if err != nil || !ok {
		return err
	}
	s.record(dest, existed)
	if s.DryRun {
		s.would("copy %s", paths.Display(dest))
		return nil
	}
	if err := removeLink(dest); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	// OpenFile only applies the mode to new files.
	if err := os.Chmod(dest, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode on %s: %w", dest, err)
	}
	s.Log.Debug("copied", "src", src, "dest", dest)
	return nil
}

// WriteFile writes data to dest, resolving a conflict on an existing dest
// first. It reports whether the write happened (or would in a dry run).
func (s *Syncer) WriteFile(dest string, data []byte) (bool, error) {
	mode := fs.FileMode(0644)
	if info, err := os.Stat(dest); err == nil {
		mode = info.Mode().Perm()
	}

	ok, existed, err := s.prepare(dest, s.Resolver.File)
	if err != nil || !ok {
		return false, err
	}
	s.record(dest, existed)
	if s.DryRun {
		s.would("write %s (%d bytes)", paths.Display(dest), len(data))
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := WriteAtomic(dest, data, mode); err != nil {
		return false, err
	}
	s.Log.Debug("wrote", "path", dest)
	return true, nil
}

// WriteAtomic writes data to a scratch file next to path and renames it into
// place. The scratch file is removed by the exit handler if the process dies
// before the rename.
func WriteAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating scratch file for %s: %w", path, err)
	}
	unregister := cleanup.RegisterPath(tmp.Name())
	defer unregister()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// would reports a change a dry run skipped.
func (s *Syncer) would(format string, args ...any) {
	line := fmt.Sprintf("would "+format, args...)
	s.Log.Debug(line)
	if s.Out != nil {
		fmt.Fprintf(s.Out, "  %s\n", line)
	}
}

// removeLink deletes path when it is a symlink, so the write that follows
// replaces the link instead of going through it.
func removeLink(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing link %s: %w", path, err)
	}
	return nil
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
