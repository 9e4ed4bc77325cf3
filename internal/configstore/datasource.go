package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/cruise"
)

// ConfigFileHasChangedError is returned by a write when the file on disk
// no longer has the md5 the writer started from.
type ConfigFileHasChangedError struct {
	Expected string
	Actual   string
}

func (e *ConfigFileHasChangedError) Error() string {
	return fmt.Sprintf(
		"configuration file has been modified by someone else (expected md5 %s, found %s)",
		e.Expected, e.Actual,
	)
}

// ConfigHolder pairs the merged, preprocessed configuration used for reads
// with the main-file configuration that edits are applied to.
type ConfigHolder struct {
	Config  *cruise.CruiseConfig
	ForEdit *cruise.CruiseConfig
}

// Parse loads content and merges partials into it. The returned holder's
// Config is preprocessed and valid.
func Parse(content []byte, partials []cruise.PartialConfig) (*ConfigHolder, error) {
	forEdit, err := cruise.Unmarshal(content)
	if err != nil {
		return nil, err
	}
	md5 := cruise.MD5Of(content)
	forEdit.MD5 = md5

	merged, err := cruise.Merge(forEdit, partials)
	if err != nil {
		return nil, err
	}
	if err := cruise.Preprocess(merged); err != nil {
		return nil, cruise.NewInvalidConfigError([]string{err.Error()})
	}
	if !cruise.ValidateTree(merged) {
		return nil, cruise.NewInvalidConfigError(cruise.AllErrors(merged))
	}
	merged.MD5 = md5
	return &ConfigHolder{Config: merged, ForEdit: forEdit}, nil
}

// FileDataSource reads and writes the main configuration file.
type FileDataSource struct {
	fs     billy.Filesystem
	name   string
	logger *zap.Logger
}

func NewFileDataSource(fs billy.Filesystem, name string, logger *zap.Logger) *FileDataSource {
	return &FileDataSource{fs: fs, name: name, logger: logger}
}

// Read returns the file contents, creating a default configuration first
// when the file does not exist.
func (ds *FileDataSource) Read() ([]byte, error) {
	content, err := util.ReadFile(ds.fs, ds.name)
	if errors.Is(err, os.ErrNotExist) {
		ds.logger.Info("configuration file not found, writing default", zap.String("file", ds.name))
		if content, err = cruise.Marshal(cruise.NewCruiseConfig()); err != nil {
			return nil, err
		}
		if err := ds.replace(content); err != nil {
			return nil, err
		}
		return content, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ds.name, err)
	}
	return content, nil
}

func (ds *FileDataSource) MD5OnDisk() (string, error) {
	content, err := ds.Read()
	if err != nil {
		return "", err
	}
	return cruise.MD5Of(content), nil
}

// Load reads and parses the file.
func (ds *FileDataSource) Load(partials []cruise.PartialConfig) (*ConfigHolder, []byte, error) {
	content, err := ds.Read()
	if err != nil {
		return nil, nil, err
	}
	holder, err := Parse(content, partials)
	if err != nil {
		return nil, content, err
	}
	return holder, content, nil
}

// Write replaces the file with content. A non-empty expectedMD5 must match
// the file currently on disk.
func (ds *FileDataSource) Write(content []byte, expectedMD5 string) error {
	if expectedMD5 != "" {
		actual, err := ds.MD5OnDisk()
		if err != nil {
			return err
		}
		if actual != expectedMD5 {
			return &ConfigFileHasChangedError{Expected: expectedMD5, Actual: actual}
		}
	}
	return ds.replace(content)
}

func (ds *FileDataSource) replace(content []byte) error {
	dir := filepath.Dir(ds.name)
	if dir != "." {
		if err := ds.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := util.TempFile(ds.fs, dir, ".cruise-config-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = ds.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = ds.fs.Remove(tmpName)
		return err
	}
	if err := ds.fs.Rename(tmpName, ds.name); err != nil {
		_ = ds.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", ds.name, err)
	}
	return nil
}
