package gitcache

import (
	"context"
	"os"
	"slices"
	"sort"

	"github.com/go-git/go-billy/v5/util"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/jmgilman/go/errors"
)

// parseModules decodes .gitmodules content. The file shares git's config
// syntax; one section per submodule, keyed by name, carrying path, url and
// an optional branch.
func parseModules(data []byte) (*gitcfg.Modules, error) {
	modules := gitcfg.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, err
	}
	return modules, nil
}

// resolveSubmodules builds the list of clonable submodules for a checked-out
// repository: .gitmodules declarations joined with the commit pins reported
// by `git submodule status`. A repository without a .gitmodules file has no
// submodules and that is not an error.
//
// Declarations missing a path or url are logged and skipped. So is a
// declaration without a recorded commit pin, since there is no revision to
// reproduce. When filter is non-empty, only submodules whose path appears
// in it are kept.
func (c *Cache) resolveSubmodules(ctx context.Context, repo *gitRepo, filter []string) ([]SubmoduleSpec, error) {
	data, err := util.ReadFile(c.fs, c.fs.Join(repo.path, ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.CodeInternal,
			"reading .gitmodules in %s", repo.path)
	}

	modules, err := parseModules(data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidInput,
			"parsing .gitmodules in %s", repo.path)
	}
	if len(modules.Submodules) == 0 {
		return nil, nil
	}

	pins, err := repo.submoduleStatus(ctx)
	if err != nil {
		return nil, gitOpError(err, "listing submodule pins in", repo.path)
	}

	specs := make([]SubmoduleSpec, 0, len(modules.Submodules))
	for _, m := range modules.Submodules {
		if m.Path == "" || m.URL == "" {
			c.logger.Warn().Str("submodule", m.Name).Msg("submodule missing path or url")
			continue
		}

		commit, ok := pins[m.Path]
		if !ok {
			c.logger.Warn().Str("path", m.Path).Msg("no commit recorded for submodule")
			continue
		}

		if len(filter) > 0 && !slices.Contains(filter, m.Path) {
			continue
		}

		specs = append(specs, SubmoduleSpec{
			Path:   m.Path,
			URL:    m.URL,
			Commit: commit,
			Branch: m.Branch,
		})
	}

	// Map iteration order is random; keep results deterministic.
	sort.Slice(specs, func(i, j int) bool { return specs[i].Path < specs[j].Path })

	return specs, nil
}
