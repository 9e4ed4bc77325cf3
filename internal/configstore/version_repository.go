package configstore

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"go.uber.org/zap"
)

const versionedFileName = "cruise-config.yaml"

type RevisionNotFoundError struct {
	MD5 string
}

func (e *RevisionNotFoundError) Error() string {
	return fmt.Sprintf("no configuration revision with md5 %s", e.MD5)
}

// Revision is one committed version of the configuration file.
type Revision struct {
	Hash          string    `json:"hash"`
	MD5           string    `json:"md5"`
	Username      string    `json:"username"`
	SchemaVersion int       `json:"schema_version"`
	Time          time.Time `json:"time"`
}

func (r Revision) message() string {
	return fmt.Sprintf(
		"user:%s|timestamp:%d|schema_version:%d|md5:%s",
		r.Username, r.Time.UnixMilli(), r.SchemaVersion, r.MD5,
	)
}

func parseRevision(c *object.Commit) Revision {
	rev := Revision{Hash: c.Hash.String(), Time: c.Author.When}
	for _, part := range strings.Split(strings.TrimSpace(c.Message), "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch key {
		case "user":
			rev.Username = value
		case "md5":
			rev.MD5 = value
		case "schema_version":
			rev.SchemaVersion, _ = strconv.Atoi(value)
		}
	}
	return rev
}

// VersionRepository keeps every saved configuration as a git commit.
type VersionRepository struct {
	mu       sync.Mutex
	repo     *git.Repository
	worktree billy.Filesystem
	logger   *zap.Logger
	now      func() time.Time
}

// OpenVersionRepository opens the git repository in dir, creating it when
// it does not exist.
func OpenVersionRepository(dir string, logger *zap.Logger) (*VersionRepository, error) {
	fs := osfs.New(dir)
	dotGit, err := fs.Chroot(git.GitDirName)
	if err != nil {
		return nil, err
	}
	s := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())
	return NewVersionRepository(s, fs, logger)
}

func NewVersionRepository(s storage.Storer, worktree billy.Filesystem, logger *zap.Logger) (*VersionRepository, error) {
	repo, err := git.Open(s, worktree)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		logger.Info("initializing configuration version repository")
		repo, err = git.Init(s, worktree)
	}
	if err != nil {
		return nil, fmt.Errorf("opening configuration repository: %w", err)
	}
	return &VersionRepository{
		repo:     repo,
		worktree: worktree,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Commit checks content in unless the latest revision already has md5.
func (vr *VersionRepository) Commit(content []byte, md5, username string, schemaVersion int) (Revision, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	if head, err := vr.head(); err == nil && head.MD5 == md5 {
		return head, nil
	}

	rev := Revision{
		MD5:           md5,
		Username:      username,
		SchemaVersion: schemaVersion,
		Time:          vr.now().UTC(),
	}
	if err := util.WriteFile(vr.worktree, versionedFileName, content, 0o644); err != nil {
		return rev, err
	}
	w, err := vr.repo.Worktree()
	if err != nil {
		return rev, err
	}
	if _, err := w.Add(versionedFileName); err != nil {
		return rev, err
	}
	hash, err := w.Commit(rev.message(), &git.CommitOptions{
		Author: &object.Signature{Name: username, Email: username + "@simple-cd", When: rev.Time},
	})
	if err != nil {
		return rev, fmt.Errorf("committing configuration: %w", err)
	}
	rev.Hash = hash.String()
	vr.logger.Debug("configuration committed", zap.String("md5", md5), zap.String("hash", rev.Hash))
	return rev, nil
}

// Revisions lists revisions newest first.
func (vr *VersionRepository) Revisions(limit, offset int) ([]Revision, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	revisions := make([]Revision, 0)
	skipped := 0
	err := vr.forEachCommit(func(c *object.Commit) error {
		if skipped < offset {
			skipped++
			return nil
		}
		if limit > 0 && len(revisions) >= limit {
			return storer.ErrStop
		}
		revisions = append(revisions, parseRevision(c))
		return nil
	})
	return revisions, err
}

func (vr *VersionRepository) Head() (Revision, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.head()
}

// ConfigAt returns the file contents committed with md5.
func (vr *VersionRepository) ConfigAt(md5 string) ([]byte, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	c, err := vr.commitWithMD5(md5)
	if err != nil {
		return nil, err
	}
	f, err := c.File(versionedFileName)
	if err != nil {
		return nil, err
	}
	content, err := f.Contents()
	return []byte(content), err
}

// Diff returns a unified diff from the revision with fromMD5 to the one
// with toMD5.
func (vr *VersionRepository) Diff(fromMD5, toMD5 string) (string, error) {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	from, err := vr.commitWithMD5(fromMD5)
	if err != nil {
		return "", err
	}
	to, err := vr.commitWithMD5(toMD5)
	if err != nil {
		return "", err
	}
	patch, err := from.Patch(to)
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}
	return patch.String(), nil
}

func (vr *VersionRepository) head() (Revision, error) {
	ref, err := vr.repo.Head()
	if err != nil {
		return Revision{}, err
	}
	c, err := vr.repo.CommitObject(ref.Hash())
	if err != nil {
		return Revision{}, err
	}
	return parseRevision(c), nil
}

func (vr *VersionRepository) commitWithMD5(md5 string) (*object.Commit, error) {
	var found *object.Commit
	err := vr.forEachCommit(func(c *object.Commit) error {
		if parseRevision(c).MD5 == md5 {
			found = c
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &RevisionNotFoundError{MD5: md5}
	}
	return found, nil
}

func (vr *VersionRepository) forEachCommit(fn func(*object.Commit) error) error {
	ref, err := vr.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	iter, err := vr.repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return err
	}
	defer iter.Close()
	err = iter.ForEach(fn)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
