package aclspec

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// maxParallelLoads bounds the seed files parsed at once.
const maxParallelLoads = 8

// ExpandPaths turns command line arguments into seed file paths. A directory
// contributes the seed files below it, a pattern such as "seeds/**/*.acl.yaml"
// its matches, and anything else is taken as a file. Duplicates are dropped and
// the first occurrence keeps its position.
func ExpandPaths(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			found, err := FindSeedFiles(arg)
			if err != nil {
				return nil, err
			}
			for _, p := range found {
				add(p)
			}

		case err == nil:
			add(arg)

		case doublestar.ValidatePathPattern(arg) && hasMeta(arg):
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
			if err != nil {
				return nil, fmt.Errorf("glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no seed files match %q", arg)
			}
			slices.Sort(matches)
			for _, p := range matches {
				add(p)
			}

		default:
			return nil, err
		}
	}
	return paths, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// LoadFiles parses every path concurrently. The result keeps the order of
// paths, and the first failure cancels the loads still pending.
func LoadFiles(ctx context.Context, paths []string) ([]*SeedFile, error) {
	files := make([]*SeedFile, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelLoads)
	for i, path := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			file, err := LoadFromFile(path)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
