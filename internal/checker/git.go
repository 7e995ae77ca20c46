package checker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/go-git/go-git/v5"
)

const (
	KindGit = "git"

	PrefGitEnabled           = "gitEnabled"
	PrefGitExecutable        = "gitExecutable"
	PrefGitBackgroundEnabled = "gitBackgroundCheck"
	PrefGitBackgroundMinutes = "gitBackgroundMinutes"
	PrefGitRecursive         = "gitRecursive"
)

type gitRepo struct {
	repo *git.Repository
	root string
}

// GitChecker reports resources whose version-control status changed.
// The status of a file is its staging and worktree codes; with recursion
// enabled a directory's status folds the codes of every path under it.
type GitChecker struct {
	*Base

	mu         sync.Mutex
	repos      map[string]gitRepo
	signatures map[string]string
}

// NewGitChecker creates the git checker
func NewGitChecker(deps Deps) *GitChecker {
	g := &GitChecker{
		repos:      make(map[string]gitRepo),
		signatures: make(map[string]string),
	}
	g.Base = NewBase(Options{
		Kind: KindGit,
		Name: "Git",
		Keys: PrefKeys{
			Enabled:            PrefGitEnabled,
			Executable:         PrefGitExecutable,
			BackgroundEnabled:  PrefGitBackgroundEnabled,
			BackgroundDuration: PrefGitBackgroundMinutes,
			Recursive:          PrefGitRecursive,
		},
		Defaults:            DefaultSettings(),
		BackgroundOptIn:     true,
		OnExecutableChanged: g.executableChanged,
	}, deps)
	return g
}

// UpdateFileStatus compares the current VCS status of a local resource with the last one seen.
func (g *GitChecker) UpdateFileStatus(ctx context.Context, res resource.Resource, reason Reason) Status {
	if !res.IsLocal() {
		return StatusInapplicable
	}
	path, err := resource.PathFromURI(res.URI())
	if err != nil {
		return StatusInapplicable
	}

	settings := g.Settings()
	return g.GatedProbe(ctx, res, reason, settings.BackgroundDuration, func(ctx context.Context) (Status, error) {
		return g.probe(ctx, path, res.URI(), settings.Recursive)
	})
}

func (g *GitChecker) probe(ctx context.Context, path, uri string, recursive bool) (Status, error) {
	path = resolvePath(path)
	info, statErr := os.Stat(path)
	isDir := statErr == nil && info.IsDir()
	if isDir && !recursive {
		return StatusInapplicable, nil
	}

	dir := path
	if !isDir {
		dir = filepath.Dir(path)
	}

	repo, err := g.openRepository(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) || errors.Is(err, git.ErrIsBareRepository) {
		return StatusInapplicable, nil
	}
	if err != nil {
		return StatusUnchanged, err
	}

	rel, err := filepath.Rel(repo.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return StatusInapplicable, nil
	}
	rel = filepath.ToSlash(rel)

	if err := ctx.Err(); err != nil {
		return StatusUnchanged, err
	}

	wt, err := repo.repo.Worktree()
	if err != nil {
		return StatusUnchanged, err
	}
	status, err := wt.Status()
	if err != nil {
		return StatusUnchanged, err
	}

	var signature string
	if isDir {
		signature = folded(status, rel)
	} else if fs, ok := status[rel]; ok {
		signature = fmt.Sprintf("%c%c", fs.Staging, fs.Worktree)
	}

	if err := ctx.Err(); err != nil {
		return StatusUnchanged, err
	}

	key := NormalizeKey(uri)
	g.mu.Lock()
	previous, seen := g.signatures[key]
	g.signatures[key] = signature
	g.mu.Unlock()

	if !seen || previous != signature {
		return StatusChanged, nil
	}
	return StatusUnchanged, nil
}

// resolvePath follows symlinks in path, or in its parent when the file itself is gone
func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		return filepath.Join(dir, filepath.Base(path))
	}
	return path
}

// folded joins the status codes of every path below dir in path order
func folded(status git.Status, dir string) string {
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}

	var paths []string
	for p := range status {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fs := status[p]
		fmt.Fprintf(&b, "%s:%c%c;", p, fs.Staging, fs.Worktree)
	}
	return b.String()
}

func (g *GitChecker) openRepository(dir string) (gitRepo, error) {
	g.mu.Lock()
	cached, ok := g.repos[dir]
	g.mu.Unlock()
	if ok {
		return cached, nil
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return gitRepo{}, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return gitRepo{}, err
	}

	root := wt.Filesystem.Root()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	entry := gitRepo{repo: repo, root: root}

	g.mu.Lock()
	g.repos[dir] = entry
	g.mu.Unlock()
	return entry, nil
}

// executableChanged drops cached repository handles so the next probe reopens them
func (g *GitChecker) executableChanged(old, new string) {
	g.mu.Lock()
	g.repos = make(map[string]gitRepo)
	g.mu.Unlock()

	logger := g.Logger()
	logger.Info().Str("old", old).Str("new", new).Msg("Git executable changed, repository handles reset")
}
