package main

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"

	"lc3tools/pkg/utils"
)

// expandInputs turns the command line into a list of source files. Glob
// patterns (with ** for any depth) are expanded; plain names are kept even
// when they do not exist so the missing file is reported. Each file appears
// once.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) error {
		if utils.HasExt(path, ".obj") || utils.HasExt(path, ".sym") {
			return eris.Errorf("%s is an assembler output, not a source file", path)
		}
		full, _, err := utils.GetPathInfo(path)
		if err != nil {
			return eris.Wrapf(err, "failed to resolve %s", path)
		}
		if !seen[full] {
			seen[full] = true
			files = append(files, path)
		}
		return nil
	}

	for _, arg := range args {
		if !isPattern(arg) {
			if err := add(arg); err != nil {
				return nil, err
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, eris.Wrapf(err, "bad pattern %q", arg)
		}
		if len(matches) == 0 {
			return nil, eris.Errorf("no files match %q", arg)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if utils.HasExt(m, ".obj") || utils.HasExt(m, ".sym") {
				continue
			}
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}

func isPattern(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}
