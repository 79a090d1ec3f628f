package sftpd

import (
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
)

// Handlers routes SFTP requests to the given filesystem. Symlink operations
// are reported as unsupported; the in-memory backend has no notion of links.
func Handlers(fsys afero.Fs) sftp.Handlers {
	h := &aferoHandler{fs: fsys}
	return sftp.Handlers{
		FileGet:  h,
		FilePut:  h,
		FileCmd:  h,
		FileList: h,
	}
}

type aferoHandler struct {
	fs afero.Fs
}

func (h *aferoHandler) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	return h.fs.Open(r.Filepath)
}

func (h *aferoHandler) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	return h.fs.OpenFile(r.Filepath, openFlags(r), 0644)
}

func (h *aferoHandler) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Setstat":
		return h.setstat(r)
	case "Rename", "PosixRename":
		return h.fs.Rename(r.Filepath, r.Target)
	case "Rmdir", "Remove":
		return h.fs.Remove(r.Filepath)
	case "Mkdir":
		return h.fs.Mkdir(r.Filepath, 0755)
	case "Link", "Symlink":
		return sftp.ErrSSHFxOpUnsupported
	default:
		return sftp.ErrSSHFxOpUnsupported
	}
}

func (h *aferoHandler) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	switch r.Method {
	case "List":
		entries, err := afero.ReadDir(h.fs, r.Filepath)
		if err != nil {
			return nil, err
		}
		return listerat(entries), nil
	case "Stat":
		info, err := h.fs.Stat(r.Filepath)
		if err != nil {
			return nil, err
		}
		return listerat{info}, nil
	default:
		return nil, sftp.ErrSSHFxOpUnsupported
	}
}

func (h *aferoHandler) setstat(r *sftp.Request) error {
	attrs := r.Attributes()
	flags := r.AttrFlags()

	if flags.Size {
		f, err := h.fs.OpenFile(r.Filepath, os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		if err := f.Truncate(int64(attrs.Size)); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if flags.Permissions {
		if err := h.fs.Chmod(r.Filepath, attrs.FileMode()); err != nil {
			return err
		}
	}

	if flags.Acmodtime {
		atime := time.Unix(int64(attrs.Atime), 0)
		mtime := time.Unix(int64(attrs.Mtime), 0)
		if err := h.fs.Chtimes(r.Filepath, atime, mtime); err != nil {
			return err
		}
	}

	return nil
}

func openFlags(r *sftp.Request) int {
	pflags := r.Pflags()

	var flags int
	switch {
	case pflags.Read && pflags.Write:
		flags = os.O_RDWR
	case pflags.Write:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}

	if pflags.Creat {
		flags |= os.O_CREATE
	}
	if pflags.Trunc {
		flags |= os.O_TRUNC
	}
	if pflags.Excl {
		flags |= os.O_EXCL
	}
	if pflags.Append {
		flags |= os.O_APPEND
	}

	return flags
}

// listerat satisfies sftp.ListerAt over a fixed snapshot of entries.
type listerat []os.FileInfo

func (l listerat) ListAt(ls []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}

	n := copy(ls, l[offset:])
	if n < len(ls) {
		return n, io.EOF
	}

	return n, nil
}
