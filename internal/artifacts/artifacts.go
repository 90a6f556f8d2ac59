// Package artifacts locates optimizer result files on the host filesystem.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Finder locates the newest result artifact for a strategy. It implements
// batch.ArtifactFinder.
type Finder struct {
	log *logrus.Logger

	// dir is the hyperopt results directory on the host.
	dir string

	// settleDelay is waited before globbing so the optimizer's final file
	// write has landed on disk.
	settleDelay time.Duration
}

// NewFinder creates a Finder over the given results directory.
func NewFinder(log *logrus.Logger, dir string, settleDelay time.Duration) *Finder {
	return &Finder{log: log, dir: dir, settleDelay: settleDelay}
}

// FindLatest returns the path of the most recently modified result file for
// the strategy.
func (f *Finder) FindLatest(strategy string) (string, error) {
	if f.settleDelay > 0 {
		time.Sleep(f.settleDelay)
	}

	if info, err := os.Stat(f.dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("results directory %q not found", f.dir)
	}

	pattern := filepath.Join(f.dir, fmt.Sprintf("strategy_%s*.fthypt", strategy))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no result files matching %q", pattern)
	}

	var newest string
	var newestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			f.log.WithError(err).WithField("path", path).Warn("skipping unreadable result file")
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = path
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no readable result files matching %q", pattern)
	}

	f.log.WithField("path", newest).Info("found latest result artifact")
	return newest, nil
}
