//go:build !darwin && !linux

package storage

func volumeKind(string) (string, error) {
	return "", errVolumeUnknown
}
