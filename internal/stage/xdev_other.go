//go:build !unix

package stage

func isCrossDevice(error) bool {
	return false
}
