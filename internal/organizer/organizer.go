// Package organizer files claimed downloads into one workspace per identifier.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"report-harvester/internal/logger"
)

const timestampLayout = "20060102-150405"

// ErrInvalidIdentifier is returned for identifiers that cannot be used as a workspace name
// as they are. Rewriting them would let two identifiers (1/2 and 1_2) share a workspace.
var ErrInvalidIdentifier = errors.New("identifier cannot be used as a file name")

// OrganizeError reports a file that could not be filed. The source is left where it was.
type OrganizeError struct {
	Identifier string
	Source     string
	Dest       string
	Op         string // stat, mkdir, name, rename, copy, write
	Err        error
}

func (e *OrganizeError) Error() string {
	src := e.Source
	if src == "" {
		src = "generated file"
	}
	if e.Dest == "" {
		return fmt.Sprintf("organize %s for %s: %s: %v", src, e.Identifier, e.Op, e.Err)
	}
	return fmt.Sprintf("organize %s -> %s for %s: %s: %v", src, e.Dest, e.Identifier, e.Op, e.Err)
}

func (e *OrganizeError) Unwrap() error { return e.Err }

type Organizer struct {
	Root   string
	Prefix string
	// Now is the clock used for file name timestamps.
	Now func() time.Time
}

func New(root, prefix string) *Organizer {
	if prefix == "" {
		prefix = "report"
	}
	return &Organizer{Root: root, Prefix: prefix, Now: time.Now}
}

// Workspace returns the directory that holds every file of identifier.
func (o *Organizer) Workspace(identifier string) string {
	return filepath.Join(o.Root, "ID_"+sanitize(identifier))
}

// Validate rejects identifiers containing path separators, characters that common
// filesystems refuse, or nothing but dots.
func (o *Organizer) Validate(identifier string) error {
	id := strings.TrimSpace(identifier)
	if sanitize(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	return nil
}

// File moves the claimed file into the identifier workspace under a name no other file in
// that workspace has, and returns the final path.
func (o *Organizer) File(claimed, identifier string) (string, error) {
	if err := o.Validate(identifier); err != nil {
		return "", &OrganizeError{Identifier: identifier, Source: claimed, Op: "name", Err: err}
	}
	if _, err := os.Stat(claimed); err != nil {
		return "", &OrganizeError{Identifier: identifier, Source: claimed, Op: "stat", Err: err}
	}
	dest, err := o.store(claimed, identifier, o.Prefix, filepath.Ext(claimed), func(dest string) error {
		return o.place(claimed, dest)
	})
	if err == nil {
		logger.Debug("📁 %s -> %s", claimed, dest)
	}
	return dest, err
}

// Write stores body as a new file of the identifier workspace, named like downloads but
// with prefix, and returns its path.
func (o *Organizer) Write(identifier, prefix, ext string, body []byte) (string, error) {
	return o.store("", identifier, sanitize(prefix), ext, func(dest string) error {
		return writeExclusive(dest, body)
	})
}

// store picks the first free <prefix>_<identifier>_<timestamp>[-n]<ext> in the workspace
// and hands it to put, which must fail with os.ErrExist when the name is taken.
func (o *Organizer) store(source, identifier, prefix, ext string, put func(dest string) error) (string, error) {
	fail := func(op, dest string, err error) (string, error) {
		return "", &OrganizeError{Identifier: identifier, Source: source, Dest: dest, Op: op, Err: err}
	}

	if err := o.Validate(identifier); err != nil {
		return fail("name", "", err)
	}

	dir := o.Workspace(identifier)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail("mkdir", dir, err)
	}

	base := fmt.Sprintf("%s_%s_%s", prefix, sanitize(identifier), o.Now().Format(timestampLayout))

	for n := 1; n < 10000; n++ {
		name := base + ext
		if n > 1 {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		dest := filepath.Join(dir, name)

		err := put(dest)
		if err == nil {
			return dest, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return fail(opOf(err), dest, err)
	}
	return fail("name", filepath.Join(dir, base+ext), errors.New("no free file name"))
}

type placeError struct {
	op  string
	err error
}

func (e *placeError) Error() string { return e.err.Error() }
func (e *placeError) Unwrap() error { return e.err }

func opOf(err error) string {
	var pe *placeError
	if errors.As(err, &pe) {
		return pe.op
	}
	return "rename"
}

// place moves src to dest without ever replacing an existing dest. It returns an error
// matching os.ErrExist when dest is taken.
func (o *Organizer) place(src, dest string) error {
	// Link+unlink instead of rename: rename silently replaces an existing dest.
	err := os.Link(src, dest)
	if err == nil {
		if err := removeFile(src); err != nil {
			os.Remove(dest)
			return &placeError{op: "rename", err: err}
		}
		return nil
	}
	if errors.Is(err, os.ErrExist) {
		return err
	}
	if !crossDevice(err) && !linkUnsupported(err) {
		return &placeError{op: "rename", err: err}
	}
	return copyThenRemove(src, dest)
}

// removeFile is swapped in tests.
var removeFile = os.Remove

// copyThenRemove is the cross-device path. The source is removed only after the copy has
// been synced. Any failure removes the destination, so there is never more than one copy.
func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return &placeError{op: "copy", err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return &placeError{op: "copy", err: err}
	}

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return &placeError{op: "copy", err: err}
	}

	in.Close()
	if err := removeFile(src); err != nil {
		os.Remove(dest)
		return &placeError{op: "copy", err: fmt.Errorf("remove source: %w", err)}
	}
	return nil
}

func writeExclusive(dest string, body []byte) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return &placeError{op: "write", err: err}
	}
	_, err = f.Write(body)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return &placeError{op: "write", err: err}
	}
	return nil
}

func crossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// linkUnsupported covers filesystems without hard links (FAT, some network mounts).
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOTSUP) || errors.Is(err, syscall.EOPNOTSUPP)
}

// sanitize replaces characters that are not allowed in file names on common filesystems.
func sanitize(identifier string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(identifier))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
