package database

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	pathStepLen  = 4
	pathAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var maxPathStep = func() int64 {
	n, _ := strconv.ParseInt(strings.Repeat("Z", pathStepLen), 36, 64)
	return n
}()

// pathStep encodes n as a zero padded base-36 step.
func pathStep(n int64) (string, error) {
	if n < 1 || n > maxPathStep {
		return "", fmt.Errorf("path step %d out of range", n)
	}
	s := strings.ToUpper(strconv.FormatInt(n, 36))
	return strings.Repeat(string(pathAlphabet[0]), pathStepLen-len(s)) + s, nil
}

// childPath returns the path of a new child appended after lastChild.
// lastChild is empty when the parent has no children yet.
func childPath(parentPath, lastChild string) (string, error) {
	if lastChild == "" {
		step, err := pathStep(1)
		if err != nil {
			return "", err
		}
		return parentPath + step, nil
	}
	if len(lastChild) != len(parentPath)+pathStepLen || !strings.HasPrefix(lastChild, parentPath) {
		return "", fmt.Errorf("path %q is not a child of %q", lastChild, parentPath)
	}
	last, err := strconv.ParseInt(lastChild[len(parentPath):], 36, 64)
	if err != nil {
		return "", fmt.Errorf("invalid path step in %q: %w", lastChild, err)
	}
	step, err := pathStep(last + 1)
	if err != nil {
		return "", err
	}
	return parentPath + step, nil
}

// AncestorPaths lists the paths of every ancestor of path, root first.
func AncestorPaths(path string) []string {
	var out []string
	for end := pathStepLen; end < len(path); end += pathStepLen {
		out = append(out, path[:end])
	}
	return out
}

// depthOf returns the tree depth encoded in a path.
func depthOf(path string) int {
	return len(path) / pathStepLen
}

// CommonAncestorPath returns the path of the deepest page that is, or is an
// ancestor of, every page in paths. It is empty when paths is empty.
func CommonAncestorPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := paths[0]
	for _, p := range paths[1:] {
		n := 0
		for n < len(common) && n < len(p) && common[n] == p[n] {
			n++
		}
		common = common[:n-n%pathStepLen]
	}
	return common
}
