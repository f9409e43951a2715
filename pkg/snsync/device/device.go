// Package device locates a Supernote's document tree mounted over MTP and
// describes which file types the device understands.
package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jamesainslie/snsync/pkg/snsync/filter"
	"github.com/spf13/afero"
)

// File suffixes with special meaning on the device.
const (
	NoteSuffix = ".note"
	MarkSuffix = ".mark"
	PDFSuffix  = ".pdf"
)

// Discovery defaults.
const (
	DefaultSerialEnv     = "SN_SERIAL"
	DefaultMountTemplate = "/run/user/{uid}/gvfs/mtp:host=rockchip_Supernote_A5_X_SN{serial}/Supernote"
	DefaultDocumentsDir  = "Document"
)

var supportedSuffixes = []string{".pdf", ".epub", ".png", ".jpg", ".cbz", ".fb2", ".xps"}

// SupportedSuffixes returns the document types the device can open.
func SupportedSuffixes() filter.SuffixSet {
	return filter.NewSuffixSet(supportedSuffixes...)
}

// NativeSuffixes returns the device's own notebook and annotation types.
func NativeSuffixes() filter.SuffixSet {
	return filter.NewSuffixSet(NoteSuffix, MarkSuffix)
}

var (
	// ErrMissingSerial indicates the serial environment variable is unset.
	ErrMissingSerial = errors.New("device serial not set")

	// ErrMountNotFound indicates the mount root does not exist.
	ErrMountNotFound = errors.New("device mount not found")

	// ErrNotDirectory indicates the mount root is not a directory.
	ErrNotDirectory = errors.New("device mount is not a directory")

	// ErrUnreadable indicates the mount root cannot be read.
	ErrUnreadable = errors.New("device mount is not readable")
)

// ConfigurationError reports a device setup problem found before any sync
// starts.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "device configuration: " + e.Reason
	}
	return fmt.Sprintf("device configuration: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Options controls mount root discovery.
type Options struct {
	// SerialEnv names the environment variable holding the device serial.
	SerialEnv string

	// MountTemplate is the mount path with {uid} and {serial} placeholders.
	MountTemplate string

	// UID replaces {uid}. Empty uses the current user's id.
	UID string

	// Getenv reads the environment. Nil uses os.Getenv.
	Getenv func(string) string
}

func (o *Options) applyDefaults() {
	if o.SerialEnv == "" {
		o.SerialEnv = DefaultSerialEnv
	}
	if o.MountTemplate == "" {
		o.MountTemplate = DefaultMountTemplate
	}
	if o.UID == "" {
		o.UID = strconv.Itoa(os.Getuid())
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
}

// MountRoot expands template with uid and serial.
func MountRoot(template, uid, serial string) string {
	return strings.NewReplacer("{uid}", uid, "{serial}", serial).Replace(template)
}

// Discover resolves the device's mount root from the environment and checks
// that it is usable.
func Discover(fs afero.Fs, opts Options) (string, error) {
	opts.applyDefaults()

	serial := strings.TrimSpace(opts.Getenv(opts.SerialEnv))
	if serial == "" {
		return "", &ConfigurationError{
			Reason: fmt.Sprintf("environment variable %s is empty", opts.SerialEnv),
			Err:    ErrMissingSerial,
		}
	}

	root := MountRoot(opts.MountTemplate, opts.UID, serial)
	if err := Check(fs, root); err != nil {
		return "", err
	}
	return root, nil
}

// Check verifies that root exists, is a directory and is readable.
func Check(fs afero.Fs, root string) error {
	info, err := fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigurationError{Reason: root + " does not exist (is the device connected?)", Err: ErrMountNotFound}
		}
		return &ConfigurationError{Reason: "cannot stat " + root, Err: err}
	}
	if !info.IsDir() {
		return &ConfigurationError{Reason: root, Err: ErrNotDirectory}
	}

	// Permission bits are only meaningful on the host filesystem.
	if _, ok := fs.(*afero.OsFs); ok {
		if err := checkReadable(root); err != nil {
			return &ConfigurationError{Reason: root, Err: fmt.Errorf("%w: %w", ErrUnreadable, err)}
		}
	}
	return nil
}

// DocumentsRoot returns the documents directory under the mount root.
func DocumentsRoot(root, dir string) string {
	if dir == "" {
		dir = DefaultDocumentsDir
	}
	return filepath.Join(root, dir)
}
