package ns

import "strings"

// SplitPath splits an absolute path into names.
func SplitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, ErrInvalidPath
	}
	var names []string
	for _, name := range strings.Split(path, "/") {
		switch name {
		case "":
			continue
		case ".", "..":
			return nil, ErrInvalidPath
		}
		names = append(names, name)
	}
	return names, nil
}

// JoinPath joins names into an absolute path.
func JoinPath(names ...string) string {
	return "/" + strings.Join(names, "/")
}

func hasPrefix(names, prefix []string) bool {
	if len(prefix) > len(names) {
		return false
	}
	for i, name := range prefix {
		if names[i] != name {
			return false
		}
	}
	return true
}
