package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/relpub/internal/errors"
)

// independentVersion is lerna.json's marker for per-package versioning.
const independentVersion = "independent"

type manifest struct {
	Version string `json:"version"`
}

// CurrentVersion returns the version recorded in the monorepo manifest,
// falling back to the package manifest when the monorepo manifest is absent,
// has no version, or uses independent versioning.
func (c *Client) CurrentVersion() (string, error) {
	var tried []string
	for _, name := range []string{c.cfg.Manifest, c.cfg.PackageManifest} {
		if name == "" {
			continue
		}
		tried = append(tried, name)

		version, err := readManifestVersion(filepath.Join(c.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errors.NewValidationError("failed to read manifest").
				WithField("registry.manifest").
				WithValue(name).
				WithCause(err)
		}
		if version != "" && version != independentVersion {
			return version, nil
		}
	}
	return "", errors.NewValidationError("no version found in manifests").
		WithField("registry.manifest").
		WithValue(tried)
}

func readManifestVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m.Version, nil
}
