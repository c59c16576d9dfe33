package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PublicPrefix is the URL prefix that mirrors the upload root.
const PublicPrefix = "/uploads/"

// productsDir is the subdirectory of the upload root holding product media.
const productsDir = "products"

// ErrInvalidPath is returned for public paths that do not follow the
// products/{productId}/{variant}/{fileName} layout.
var ErrInvalidPath = errors.New("media: path outside upload layout")

// segmentRe is the allowed character set for product IDs and file names.
var segmentRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var knownVariants = map[string]bool{
	VariantOriginal: true,
	VariantSmall:    true,
	VariantMedium:   true,
	VariantLarge:    true,
}

// Layout maps between public /uploads/ paths and files under the upload
// root. The mapping is one-to-one:
//
//	{root}/products/{productId}/{variant}/{fileName}
//	/uploads/products/{productId}/{variant}/{fileName}
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at the given directory.
func NewLayout(root string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload root: %w", err)
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute upload root.
func (l *Layout) Root() string {
	return l.root
}

// ProductDir returns the directory holding every file of one product.
func (l *Layout) ProductDir(productID string) string {
	return filepath.Join(l.root, productsDir, productID)
}

// FilePath returns the on-disk location of one variant of a media file.
func (l *Layout) FilePath(productID, variant, fileName string) string {
	return filepath.Join(l.root, productsDir, productID, variant, fileName)
}

// PublicPath returns the URL path for one variant of a media file.
func (l *Layout) PublicPath(productID, variant, fileName string) string {
	return PublicPrefix + productsDir + "/" + productID + "/" + variant + "/" + fileName
}

// ParsePublicPath splits a public path into its layout segments, rejecting
// traversal, unknown variants, and anything outside /uploads/products/.
func (l *Layout) ParsePublicPath(public string) (productID, variant, fileName string, err error) {
	rest, ok := strings.CutPrefix(public, PublicPrefix+productsDir+"/")
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, public)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, public)
	}
	productID, variant, fileName = parts[0], parts[1], parts[2]
	if !ValidSegment(productID) || !ValidSegment(fileName) || !knownVariants[variant] {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidPath, public)
	}
	return productID, variant, fileName, nil
}

// Resolve maps a public path to its absolute file location.
func (l *Layout) Resolve(public string) (string, error) {
	productID, variant, fileName, err := l.ParsePublicPath(public)
	if err != nil {
		return "", err
	}
	return l.FilePath(productID, variant, fileName), nil
}

// ServePath maps the wildcard part of an /uploads/* request to a file under
// the root. Any request that would escape the root, or that names a hidden
// file, is rejected.
func (l *Layout) ServePath(rel string) (string, error) {
	if strings.ContainsRune(rel, '\\') || strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		// Covers ".." as well as in-progress ".tmp-*" files.
		if strings.HasPrefix(seg, ".") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
		}
	}
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	within, err := filepath.Rel(l.root, full)
	if err != nil || within == "." || strings.HasPrefix(within, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return full, nil
}

// DerivativeName returns the file name every derivative of fileName uses:
// the same base with a .jpg extension.
func DerivativeName(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".jpg"
}

// ValidSegment reports whether s is safe to use as one path segment.
func ValidSegment(s string) bool {
	return segmentRe.MatchString(s) && !strings.Contains(s, "..")
}

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it into place, so readers never observe a partial file. Any
// existing file at path is replaced.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
