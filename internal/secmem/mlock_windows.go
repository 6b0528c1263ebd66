//go:build windows

package secmem

// Memory locking is not supported on Windows builds; secrets are still
// zeroed on Destroy.
func mlock(_ []byte) bool {
	return false
}

func munlock(_ []byte) {
}
