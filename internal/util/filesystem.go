package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// MountInfo describes the filesystem a path lives on
type MountInfo struct {
	MountPoint string
	FSType     string
	Network    bool // SMB/CIFS, NFS, sshfs and similar
}

// mountTable is read by DetectMount; only Linux provides it
var mountTable = "/proc/mounts"

// DetectMount returns the mount holding path, or nil when the platform has
// no readable mount table. SQLite locking is unreliable on network mounts.
func DetectMount(path string) (*MountInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(mountTable)
	if err != nil {
		return nil, nil
	}
	defer file.Close()

	mounts, err := parseMounts(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}

	return matchMount(absPath, mounts), nil
}

// parseMounts reads "device mountpoint fstype ..." lines into a map of mount
// point to filesystem type
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}

	return mounts, scanner.Err()
}

// matchMount picks the longest mount point containing path
func matchMount(path string, mounts map[string]string) *MountInfo {
	var best *MountInfo
	for mountPoint, fsType := range mounts {
		if !within(path, mountPoint) {
			continue
		}
		if best != nil && len(mountPoint) <= len(best.MountPoint) {
			continue
		}
		best = &MountInfo{
			MountPoint: mountPoint,
			FSType:     fsType,
			Network:    isNetworkFS(fsType),
		}
	}
	return best
}

func within(path, mountPoint string) bool {
	if mountPoint == "/" || path == mountPoint {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}

func isNetworkFS(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, network := range []string{"nfs", "cifs", "smb", "ncpfs", "afpfs", "webdav", "fuse.sshfs", "fuse.rclone"} {
		if strings.Contains(fsType, network) {
			return true
		}
	}
	return false
}
