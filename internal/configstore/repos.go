package configstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vpittamp/i3pm-daemon/internal/cachemanager"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
)

// Worktree is one entry in a Repository's worktrees list.
type Worktree struct {
	Path         string `json:"path"`
	Branch       string `json:"branch"`
	QualifiedName string `json:"qualified_name,omitempty"`
}

// Repository is one discovered git repository in repos.json.
type Repository struct {
	Account   string     `json:"account"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Worktrees []Worktree `json:"worktrees"`
}

// ReposFile is the top-level schema of repos.json.
type ReposFile struct {
	Version      int          `json:"version"`
	Repositories []Repository `json:"repositories"`
}

// Validate checks ReposFile's required-field schema, returning a list of
// path-qualified messages rather than a single opaque error, per spec
// §4.B ("Schema errors return a list of path-qualified messages").
func (f ReposFile) Validate() []string {
	var errs []string
	if f.Version == 0 {
		errs = append(errs, "repos.json: missing required field 'version'")
	}
	for i, r := range f.Repositories {
		prefix := fmt.Sprintf("repos.json.repositories[%d]", i)
		if r.Account == "" {
			errs = append(errs, prefix+".account: required")
		}
		if r.Name == "" {
			errs = append(errs, prefix+".name: required")
		}
		if r.Path == "" {
			errs = append(errs, prefix+".path: required")
		}
		for j, wt := range r.Worktrees {
			if wt.Path == "" {
				errs = append(errs, fmt.Sprintf("%s.worktrees[%d].path: required", prefix, j))
			}
		}
	}
	return errs
}

const reposCacheKey = "repos"

// ReposLoader is a singleton loader for the hot repos.json file, caching
// the parsed+validated result for a 5s TTL via patrickmn/go-cache so
// every window::new classification doesn't re-read and re-parse the file.
type ReposLoader struct {
	path  string
	cache *cachemanager.InMemoryCacheManager[string, ReposFile]
	ttl   time.Duration
}

// NewReposLoader constructs a loader for the repos.json at path, with a
// 5s TTL and a 10s cleanup sweep.
func NewReposLoader(path string) *ReposLoader {
	return &ReposLoader{
		path:  path,
		cache: cachemanager.NewInMemoryCacheManager[string, ReposFile]("repos-json", 5*time.Second, 10*time.Second),
		ttl:   5 * time.Second,
	}
}

// Load returns the cached ReposFile if still within its TTL, otherwise
// re-reads and re-validates path.
func (l *ReposLoader) Load(ctx context.Context) (ReposFile, error) {
	if cached, ok := l.cache.Get(ctx, reposCacheKey); ok {
		return cached, nil
	}
	return l.reload(ctx)
}

// Invalidate forces the next Load to re-read path regardless of TTL.
func (l *ReposLoader) Invalidate(ctx context.Context) {
	_ = l.cache.Delete(ctx, reposCacheKey)
}

func (l *ReposLoader) reload(ctx context.Context) (ReposFile, error) {
	var f ReposFile
	if err := readJSON(l.path, &f); err != nil {
		if os.IsNotExist(err) {
			return ReposFile{}, errkind.Wrap(errkind.NotFound, "repos.json not found", err).WithPath(l.path)
		}
		return ReposFile{}, errkind.Wrap(errkind.Parse, "parsing repos.json", err).WithPath(l.path)
	}
	if errs := f.Validate(); len(errs) > 0 {
		return ReposFile{}, errkind.New(errkind.Parse, fmt.Sprintf("repos.json schema errors: %v", errs)).WithPath(l.path)
	}
	l.cache.Set(ctx, reposCacheKey, f, l.ttl)
	return f, nil
}
