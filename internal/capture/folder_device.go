package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/fichas-scanner/constants"
	"github.com/joseph-ayodele/fichas-scanner/internal/common"
)

// FolderDevice watches a directory; the most recent image file written to
// it is the current frame. Scanner apps and phone sync tools that drop
// files into a folder act as the camera this way.
type FolderDevice struct {
	dir         string
	initialScan bool
	logger      *slog.Logger
}

func NewFolderDevice(dir string, logger *slog.Logger) *FolderDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderDevice{dir: dir, logger: logger}
}

// WithInitialScan makes Open pick the newest image already in the folder.
func (d *FolderDevice) WithInitialScan() *FolderDevice {
	d.initialScan = true
	return d
}

func (d *FolderDevice) Name() string { return "folder:" + d.dir }

func (d *FolderDevice) Open(ctx context.Context) (Stream, error) {
	info, err := os.Stat(d.dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", d.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", d.dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, err
	}
	if err := w.Add(d.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", d.dir, err)
	}

	s := &folderStream{
		watcher: w,
		logger:  d.logger,
		done:    make(chan struct{}),
	}
	if d.initialScan {
		s.latest = newestImage(d.dir)
	}
	go s.loop()
	return s, nil
}

type folderStream struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}

	mu     sync.Mutex
	latest string
	closed bool
	once   sync.Once
}

func (s *folderStream) loop() {
	defer close(s.done)
	for {
		select {
		case e, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !constants.IsImagePath(e.Name) || isHidden(e.Name) {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			s.mu.Lock()
			s.latest = e.Name
			s.mu.Unlock()
			s.logger.Debug("frame arrived", "path", e.Name, "op", e.Op.String())
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// Latest returns the path of the current frame file, if any.
func (s *folderStream) Latest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *folderStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	path, closed := s.latest, s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: stream closed", common.ErrNoFrameAvailable)
	}
	if path == "" {
		return nil, common.ErrNoFrameAvailable
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		// usually a file still being written
		return nil, fmt.Errorf("%w: %s: %v", common.ErrNoFrameAvailable, filepath.Base(path), err)
	}
	return img, nil
}

func (s *folderStream) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.watcher.Close()
		<-s.done
	})
	return err
}

func newestImage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !constants.IsImagePath(e.Name()) || isHidden(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, e.Name())
			bestMod = info.ModTime()
		}
	}
	return best
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
