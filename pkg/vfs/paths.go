package vfs

import (
	"fmt"
	"strings"
)

// RootPath is the path of the tree root.
const RootPath = "/"

// Name returns the last segment of path. Folder names keep their trailing slash.
func Name(path string) string {
	if path == RootPath || path == "" {
		return path
	}
	trimmed := strings.TrimSuffix(path, "/")
	name := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if strings.HasSuffix(path, "/") {
		return name + "/"
	}
	return name
}

// ParentPath returns the folder containing path, or "" for the root.
func ParentPath(path string) string {
	if path == RootPath || path == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(path, "/")
	return trimmed[:strings.LastIndex(trimmed, "/")+1]
}

// TempPrefix returns the path prefix shared by the temporaries of path.
func TempPrefix(path string) string {
	return ParentPath(path) + TempFilePrefix + strings.TrimSuffix(Name(path), "/")
}

// ValidatePath checks that path is absolute, well formed and within MaxPathLength.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: empty path", ErrBadName)
	case len(path) > MaxPathLength:
		return fmt.Errorf("%w: path exceeds %d characters", ErrBadName, MaxPathLength)
	case !strings.HasPrefix(path, "/"):
		return fmt.Errorf("%w: path %q is not absolute", ErrBadName, path)
	case strings.Contains(path, "//"):
		return fmt.Errorf("%w: path %q has an empty segment", ErrBadName, path)
	}
	return nil
}

func isRootOrTopLevel(path string) bool {
	return path == RootPath || ParentPath(path) == RootPath
}
