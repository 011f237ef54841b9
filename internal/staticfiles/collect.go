package staticfiles

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ManifestName is the file written to the static root mapping original paths
// to their content-hashed variants.
const ManifestName = "staticmanifest.json"

// Result summarizes a collection run.
type Result struct {
	Collected int
	Skipped   int
	Manifest  map[string]string
}

// Collect copies every file under the source directories into root, in order,
// with later sources overriding earlier ones. Each file also gets a
// content-hashed sibling (style.css -> style.a1b2c3d4.css) recorded in the
// manifest so templates can reference immutable URLs. The run is
// non-interactive and idempotent: unchanged files are skipped.
func Collect(root string, sources []string) (Result, error) {
	result := Result{Manifest: map[string]string{}}
	if root == "" {
		return result, fmt.Errorf("static root not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return result, fmt.Errorf("create static root: %w", err)
	}

	for _, source := range sources {
		err := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(source, path)
			if err != nil {
				return err
			}
			copied, hashed, err := collectFile(root, path, rel)
			if err != nil {
				return fmt.Errorf("collect %s: %w", rel, err)
			}
			result.Manifest[filepath.ToSlash(rel)] = filepath.ToSlash(hashed)
			if copied {
				result.Collected++
			} else {
				result.Skipped++
			}
			return nil
		})
		if os.IsNotExist(err) {
			log.Warn().Str("source", source).Msg("static source directory missing, skipping")
			continue
		}
		if err != nil {
			return result, fmt.Errorf("walk %s: %w", source, err)
		}
	}

	if err := writeManifest(root, result.Manifest); err != nil {
		return result, err
	}
	log.Info().
		Int("collected", result.Collected).
		Int("skipped", result.Skipped).
		Str("root", root).
		Msg("static files collected")
	return result, nil
}

// collectFile copies one source file into the root under both its original
// and content-hashed names. Returns whether anything was written and the
// hashed relative path.
func collectFile(root, src, rel string) (bool, string, error) {
	sum, err := checksumFile(src)
	if err != nil {
		return false, "", err
	}
	hashed := hashedName(rel, sum)

	dst := filepath.Join(root, rel)
	hashedDst := filepath.Join(root, hashed)

	existing, err := checksumFile(dst)
	upToDate := err == nil && existing == sum
	if upToDate {
		if _, err := os.Stat(hashedDst); err == nil {
			return false, hashed, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, "", err
	}
	if err := copyFile(src, dst); err != nil {
		return false, "", err
	}
	if err := copyFile(src, hashedDst); err != nil {
		return false, "", err
	}
	return true, hashed, nil
}

// hashedName inserts the first 8 hex chars of the checksum before the
// extension: css/app.css -> css/app.a1b2c3d4.css.
func hashedName(rel, sum string) string {
	ext := filepath.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	return fmt.Sprintf("%s.%s%s", base, sum[:8], ext)
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeManifest(root string, manifest map[string]string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
