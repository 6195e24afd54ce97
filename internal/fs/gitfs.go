package fs

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"
)

var errDirectory = errors.New("cannot read directory as file")

// GitFS implements FileSystem by reading a directory of a git ref (branch,
// tag, or commit) straight from the object database. The working tree is
// never consulted. Paths are always resolved from the repository top level.
type GitFS struct {
	repoPath string
	ref      string
	root     string
}

// NewGitFS creates a GitFS that reads files below root (a repository-relative
// directory, "" for the top level) from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref, root string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref, root: Clean(root)}
}

func (g *GitFS) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// objPath maps a root-relative path to a repository-relative one. The
// repository top level is returned as "".
func (g *GitFS) objPath(name string) string {
	return Clean(path.Join(g.root, Clean(name)))
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(name string) ([]byte, error) {
	objPath := g.objPath(name)
	if objPath == "" {
		return nil, errDirectory
	}

	// git show prints a listing for trees, so only blobs may be read
	objType, err := g.git("cat-file", "-t", g.ref+":"+objPath)
	if err != nil {
		return nil, os.ErrNotExist
	}
	if strings.TrimSpace(objType) != "blob" {
		return nil, errDirectory
	}

	cmd := exec.Command("git", "-C", g.repoPath, "show", g.ref+":"+objPath)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "not exist") || strings.Contains(stderr, "but not in") {
				return nil, os.ErrNotExist
			}
			return nil, fmt.Errorf("git show: %s", stderr)
		}
		return nil, err
	}
	return out, nil
}

// Stat returns metadata for the file or directory at the given path in the git ref.
func (g *GitFS) Stat(name string) (FileInfo, error) {
	objPath := g.objPath(name)

	// For the repository top level, check if the ref exists at all
	if objPath == "" {
		if _, err := g.git("rev-parse", "--verify", g.ref); err != nil {
			return FileInfo{}, os.ErrNotExist
		}
		return FileInfo{
			Name:    g.ref,
			IsDir:   true,
			ModTime: g.getModTime(""),
		}, nil
	}

	// ls-tree without a trailing slash lists the entry itself
	out, err := g.git("ls-tree", "--full-tree", g.ref, "--", objPath)
	if err != nil {
		return FileInfo{}, os.ErrNotExist
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return FileInfo{}, os.ErrNotExist
	}

	// Parse ls-tree output: "<mode> <type> <hash>\t<name>"
	fields := strings.Fields(out)
	if len(fields) < 4 {
		return FileInfo{}, os.ErrNotExist
	}

	info := FileInfo{
		Name:    path.Base(objPath),
		IsDir:   fields[1] == "tree",
		ModTime: g.getModTime(objPath),
	}
	if info.IsDir {
		return info, nil
	}

	sizeOut, err := g.git("cat-file", "-s", g.ref+":"+objPath)
	if err == nil {
		info.Size, _ = strconv.ParseInt(strings.TrimSpace(sizeOut), 10, 64)
	}
	return info, nil
}

func (g *GitFS) getModTime(objPath string) time.Time {
	args := []string{"log", "-1", "--format=%ct", g.ref}
	if objPath != "" {
		args = append(args, "--", ":(top)"+objPath)
	}
	out, err := g.git(args...)
	if err != nil {
		return time.Time{}
	}
	ts := strings.TrimSpace(out)
	if ts == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
