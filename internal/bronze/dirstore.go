package bronze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lodestone-data/lodestone/internal/log"
)

// ErrSourceNotFound indicates no source config with the requested name exists.
var ErrSourceNotFound = errors.New("source not found")

// sourceFile mirrors the on-disk YAML layout of one source config.
type sourceFile struct {
	Name        string            `yaml:"name"`
	SourceType  SourceType        `yaml:"source_type"`
	Description string            `yaml:"description"`
	Enabled     *bool             `yaml:"enabled"`
	Tags        map[string]string `yaml:"tags"`
	Connection  map[string]any    `yaml:"connection"`
	Extract     Extract           `yaml:"extract"`
	Target      Target            `yaml:"target"`
	Schedule    *Schedule         `yaml:"schedule"`
}

// DirStore reads source configurations from a directory of YAML files,
// one file per source. It is read-only: the config-management service owns
// the write path.
type DirStore struct {
	dir    string
	logger log.Logger
}

// NewDirStore creates a DirStore over the given sources directory.
func NewDirStore(dir string, logger log.Logger) *DirStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &DirStore{dir: dir, logger: logger}
}

// ListSources returns a summary for every source config in the directory,
// sorted by file name. Unparsable files are skipped with a warning so one
// broken config cannot hide the rest.
func (s *DirStore) ListSources(ctx context.Context) ([]SourceSummary, error) {
	files, err := s.yamlFiles()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sources directory: %w", err)
	}

	summaries := make([]SourceSummary, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := s.readFile(path)
		if err != nil {
			s.logger.Warn("skipping unparsable source config", "file", path, "error", err)
			continue
		}
		summaries = append(summaries, src.summary(path))
	}
	return summaries, nil
}

// GetSource returns the full detail for the named source, including the raw
// YAML text. Returns ErrSourceNotFound when no file declares that name.
func (s *DirStore) GetSource(ctx context.Context, name string) (*SourceDetail, error) {
	files, err := s.yamlFiles()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return nil, fmt.Errorf("failed to read sources directory: %w", err)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable source config", "file", path, "error", err)
			continue
		}
		var src sourceFile
		if err := yaml.Unmarshal(raw, &src); err != nil {
			s.logger.Warn("skipping unparsable source config", "file", path, "error", err)
			continue
		}
		if src.name(path) != name {
			continue
		}
		return src.detail(path, string(raw)), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
}

func (s *DirStore) yamlFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *DirStore) readFile(path string) (*sourceFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var src sourceFile
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	return &src, nil
}

// name falls back to the file stem when the config omits an explicit name.
func (f *sourceFile) name(path string) string {
	if f.Name != "" {
		return f.Name
	}
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func (f *sourceFile) enabled() bool {
	return f.Enabled == nil || *f.Enabled
}

func (f *sourceFile) sourceType() SourceType {
	if f.SourceType == "" {
		return SourceTypeFile
	}
	return f.SourceType
}

func (f *sourceFile) cdcMode() CDCMode {
	if f.Target.CDC.Mode == "" {
		return CDCModeAppend
	}
	return f.Target.CDC.Mode
}

func (f *sourceFile) loadType() LoadType {
	if f.Extract.LoadType == "" {
		return LoadTypeFull
	}
	return f.Extract.LoadType
}

func (f *sourceFile) summary(path string) SourceSummary {
	var schedule string
	if f.Schedule != nil {
		schedule = f.Schedule.CronExpression
	}
	return SourceSummary{
		Name:        f.name(path),
		Type:        f.sourceType(),
		Description: f.Description,
		Enabled:     f.enabled(),
		Tags:        f.Tags,
		TargetTable: f.Target.FullTable(),
		CDCMode:     f.cdcMode(),
		LoadType:    f.loadType(),
		Schedule:    schedule,
	}
}

func (f *sourceFile) detail(path, raw string) *SourceDetail {
	d := &SourceDetail{
		Name:        f.name(path),
		Type:        f.sourceType(),
		Description: f.Description,
		Enabled:     f.enabled(),
		Tags:        f.Tags,
		Connection:  f.Connection,
		Extract:     f.Extract,
		Target:      f.Target,
		Schedule:    f.Schedule,
		RawYAML:     raw,
	}
	d.Extract.LoadType = f.loadType()
	d.Target.CDC.Mode = f.cdcMode()
	return d
}
