// Package fileset builds upload handles from paths, glob patterns and in-memory data.
package fileset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

// Builder turns path patterns into files.
type Builder struct {
	logger       log.Logger
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
}

// NewBuilder creates a Builder.
func NewBuilder(logger log.Logger, pathModifier pathutil.PathModifier, pathChecker pathutil.PathChecker) *Builder {
	return &Builder{
		logger:       logger,
		pathModifier: pathModifier,
		pathChecker:  pathChecker,
	}
}

// Expand is a shorthand for NewBuilder with the default path helpers followed by Expand.
func Expand(patterns []string, logger log.Logger) ([]*upload.File, error) {
	if logger == nil {
		logger = log.NewLogger()
	}
	return NewBuilder(logger, pathutil.NewPathModifier(), pathutil.NewPathChecker()).Expand(patterns)
}

// Expand resolves patterns (plain paths or doublestar globs, ~ and env vars expanded)
// to regular files. Missing paths and directories are skipped with a warning.
// Every file appears once, in pattern order.
func (b *Builder) Expand(patterns []string) ([]*upload.File, error) {
	paths, err := b.expandPatterns(patterns)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var files []*upload.File
	for _, path := range paths {
		absPath, err := b.pathModifier.AbsPath(path)
		if err != nil {
			b.logger.Warnf("Failed to parse path %s, error: %s", path, err)
			continue
		}
		if seen[absPath] {
			continue
		}
		seen[absPath] = true

		exists, err := b.pathChecker.IsPathExists(absPath)
		if err != nil {
			b.logger.Warnf("Failed to check path %s, error: %s", absPath, err)
		}
		if !exists {
			b.logger.Warnf("Upload path doesn't exist: %s", path)
			continue
		}

		info, err := os.Stat(absPath)
		if err != nil {
			b.logger.Warnf("Failed to stat %s, error: %s", absPath, err)
			continue
		}
		if !info.Mode().IsRegular() {
			b.logger.Warnf("Skipping %s, not a regular file", path)
			continue
		}

		file, err := FromPath(absPath)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	b.logger.Debugf("%d file(s) matched %d pattern(s)", len(files), len(patterns))
	return files, nil
}

func (b *Builder) expandPatterns(patterns []string) ([]string, error) {
	var expandedPaths []string
	for _, path := range patterns {
		if !strings.Contains(path, "*") {
			expandedPaths = append(expandedPaths, path)
			continue
		}

		base, pattern := doublestar.SplitPattern(path)
		absBase, err := b.pathModifier.AbsPath(base)
		if err != nil {
			return nil, err
		}
		matches, err := doublestar.Glob(os.DirFS(absBase), pattern, doublestar.WithNoFollow())
		if err != nil {
			b.logger.Warnf("Error in path pattern '%s': %s", path, err)
			continue
		}
		if len(matches) == 0 {
			b.logger.Warnf("No match for path pattern: %s", path)
			continue
		}

		for _, match := range matches {
			expandedPaths = append(expandedPaths, filepath.Join(absBase, match))
		}
	}
	return expandedPaths, nil
}

// FromPath creates a file handle for path, detecting its MIME type from the content.
func FromPath(path string) (*upload.File, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect mime type of %s: %w", path, err)
	}
	return upload.NewFileFromPath(path, filepath.Base(path), mediaType(mtype))
}

// FromBytes creates an in-memory file handle, detecting its MIME type from data.
func FromBytes(name string, data []byte) *upload.File {
	return upload.NewFileFromBytes(name, mediaType(mimetype.Detect(data)), data)
}

// mediaType drops parameters such as charset.
func mediaType(mtype *mimetype.MIME) string {
	t, _, _ := strings.Cut(mtype.String(), ";")
	return strings.TrimSpace(t)
}
