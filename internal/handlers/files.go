package handlers

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nugget/chatur/internal/intent"
)

// FileSearchConfig bounds the search.
type FileSearchConfig struct {
	// Locations are searched in order. A leading ~ is the home directory.
	Locations []string
	// MaxResults stops the walk early; zero means 5.
	MaxResults int
	// MaxDepth limits how far below each location the walk descends;
	// zero means 4.
	MaxDepth int
}

// Files finds a file or folder by name and opens the best match.
type Files struct {
	handles
	cfg    FileSearchConfig
	sys    System
	logger *slog.Logger
}

// NewFiles creates the file search handler.
func NewFiles(cfg FileSearchConfig, sys System, logger *slog.Logger) *Files {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	locations := make([]string, 0, len(cfg.Locations))
	for _, loc := range cfg.Locations {
		locations = append(locations, expandHome(loc))
	}
	cfg.Locations = locations
	return &Files{handles: handles(intent.FileSearch), cfg: cfg, sys: sys, logger: logger}
}

// Handle implements [Handler].
func (h *Files) Handle(ctx context.Context, in intent.Intent) (string, error) {
	lang := in.ResponseLanguage()
	query := strings.TrimSpace(in.Param(intent.ParamQuery))
	if query == "" {
		return say(lang, "What would you like to search for?", "क्या खोजना है?"), nil
	}

	results := h.Search(ctx, query)
	if len(results) == 0 {
		return "", fail(ErrNotFound, query, nil)
	}
	path := results[0]
	if err := h.sys.Open(path); err != nil {
		return "", fail(nil, "open the file", err)
	}
	name := filepath.Base(path)
	h.logger.Info("opened file", "path", path, "candidates", len(results))
	return say(lang, "Done: Opening "+name, name+" खोल रहा हूं"), nil
}

// Search returns paths whose base name contains query, case-insensitively.
// Exact name matches sort first, then shorter names. Hidden directories
// and unreadable subtrees are skipped.
func (h *Files) Search(ctx context.Context, query string) []string {
	q := strings.ToLower(query)
	var results []string

	for _, root := range h.cfg.Locations {
		if len(results) >= h.cfg.MaxResults || ctx.Err() != nil {
			break
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}
		rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil || len(results) >= h.cfg.MaxResults {
				return fs.SkipAll
			}
			if path == root {
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if strings.HasPrefix(name, ".") {
					return fs.SkipDir
				}
				if strings.Count(path, string(filepath.Separator))-rootDepth > h.cfg.MaxDepth {
					return fs.SkipDir
				}
			}
			if strings.Contains(strings.ToLower(name), q) {
				results = append(results, path)
			}
			return nil
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		bi, bj := strings.ToLower(filepath.Base(results[i])), strings.ToLower(filepath.Base(results[j]))
		ei, ej := bi == q, bj == q
		if ei != ej {
			return ei
		}
		return len(bi) < len(bj)
	})
	return results
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
