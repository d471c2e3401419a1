//go:build !linux

package services

// Host metrics are only collected on Linux
func readSystemStats() SystemStats {
	return SystemStats{}
}
