package indexsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

// AllowAbsPathsEnv lifts the working-directory restriction on fixture paths.
const AllowAbsPathsEnv = "INDEXSYNC_ALLOW_ABSPATHS"

type fixtureDoc struct {
	Candidates []fixtureItem `yaml:"candidates"`
	Texts      []string      `yaml:"texts"`
}

type fixtureItem struct {
	ID       string `yaml:"id"`
	FullText string `yaml:"full_text"`
}

// FileSource reads candidates from a YAML fixture instead of the database:
//
//	candidates:
//	  - id: "1"
//	    full_text: "..."
//	texts: ["..."]
//
// Plain texts are numbered after the highest explicit numeric id. A bare list
// of strings is accepted as texts.
type FileSource struct {
	Path string
}

// LoadTexts implements Source. Paths outside the working directory are
// refused unless AllowAbsPathsEnv is "1".
func (f FileSource) LoadTexts(_ context.Context) ([]domain.Candidate, error) {
	abs, err := resolve(f.Path)
	if err != nil {
		return nil, fmt.Errorf("op=indexsync.FileSource: %w", err)
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("op=indexsync.FileSource: %w: fixture %s", domain.ErrNotFound, f.Path)
		}
		return nil, fmt.Errorf("op=indexsync.FileSource: %w", err)
	}

	var doc fixtureDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		var list []string
		if err2 := yaml.Unmarshal(b, &list); err2 != nil {
			return nil, fmt.Errorf("op=indexsync.FileSource: %w: yaml parse: %v", domain.ErrInvalidArgument, err)
		}
		doc = fixtureDoc{Texts: list}
	}

	out := make([]domain.Candidate, 0, len(doc.Candidates)+len(doc.Texts))
	var next uint64
	for _, it := range doc.Candidates {
		id := strings.TrimSpace(it.ID)
		if n, err := strconv.ParseUint(id, 10, 64); err == nil && n > next {
			next = n
		}
		out = append(out, domain.Candidate{ID: id, FullText: it.FullText})
	}
	for _, t := range doc.Texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		next++
		out = append(out, domain.Candidate{ID: strconv.FormatUint(next, 10), FullText: t})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("op=indexsync.FileSource: %w: no candidates in %s", domain.ErrInvalidArgument, f.Path)
	}
	return out, nil
}

func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	if os.Getenv(AllowAbsPathsEnv) == "1" {
		return abs, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	wd = filepath.Clean(wd)
	if abs != wd && !strings.HasPrefix(abs, wd+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path %s is outside the working directory", domain.ErrInvalidArgument, abs)
	}
	return abs, nil
}
