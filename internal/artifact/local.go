package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentify/agentify/internal/errors"
)

// allowedExtensions is the plugin-file allow-list for locally-produced
// artifacts served over the narrow download path.
var allowedExtensions = map[string]bool{
	".so":    true,
	".dll":   true,
	".dylib": true,
}

// ValidateLocalFilename rejects anything but a bare plugin filename with
// an allow-listed extension. The check is purely lexical and runs before
// any filesystem call — traversal sequences and separators never reach
// the disk layer.
func ValidateLocalFilename(name string) error {
	if name == "" {
		return errors.InvalidConfig("filename is required")
	}
	if strings.Contains(name, "..") {
		return errors.InvalidConfig("filename must not contain traversal sequences")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.InvalidConfig("filename must not contain path separators")
	}
	ext := filepath.Ext(name)
	if !allowedExtensions[ext] {
		return errors.InvalidConfig(fmt.Sprintf("extension %q is not an allowed plugin extension", ext))
	}
	base := strings.TrimSuffix(name, ext)
	if filenameDisallowed.MatchString(base) {
		return errors.InvalidConfig("filename contains disallowed characters")
	}
	return nil
}

// ResolveLocal validates the requested filename and then locates it under
// dir. Validation failures are 400-class errors; a missing file is a
// 404-class not-found.
func ResolveLocal(dir, name string) (string, error) {
	if err := ValidateLocalFilename(name); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", errors.NotFound("plugin file")
	}
	return path, nil
}
