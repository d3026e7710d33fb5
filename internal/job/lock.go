package job

import (
	"fmt"
	"os"
	"syscall"

	"github.com/YodaEmbedding/easy-slurm/internal/utils"
)

// AllocationLock fences a job directory so that at most one allocation
// mutates it at a time. It must be closed to release the fence.
type AllocationLock struct {
	file *os.File
	path string
}

// Close releases the fence by closing the lock file.
func (l *AllocationLock) Close() error {
	if l.file == nil {
		return nil
	}
	// syscall.Flock locks are automatically released when the file is closed.
	err := l.file.Close()
	l.file = nil
	return err
}

// AcquireAllocationLock takes a non-blocking exclusive lock on the job
// directory's lock file. A second live allocation (an operator resubmit
// racing a scheduler continuation) fails fast here instead of corrupting
// the status record. The lock is advisory; on NFS it is best-effort.
func (d *Dir) AcquireAllocationLock() (*AllocationLock, error) {
	f, err := os.OpenFile(d.LockPath(), os.O_CREATE|os.O_RDWR, utils.PermFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", utils.StylePath(d.LockPath()), err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("another allocation is already running against %s", utils.StylePath(d.Path))
	}
	return &AllocationLock{file: f, path: d.LockPath()}, nil
}
