package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand maps a platform to its URL-opening launcher.
func browserCommand(goos, url string) (string, []string, bool) {
	switch goos {
	case "darwin":
		return "open", []string{url}, true
	case "linux":
		return "xdg-open", []string{url}, true
	case "windows":
		return "cmd", []string{"/c", "start", url}, true
	default:
		return "", nil, false
	}
}

// OpenBrowser launches the default browser at the authorization URL.
//
// Launch failures are recoverable: the caller prints the URL and the
// user opens it by hand, so errors here never abort a linking attempt.
func OpenBrowser(url string) error {
	name, args, ok := browserCommand(getRuntime(), url)
	if !ok {
		return fmt.Errorf("no known browser launcher for platform %s", getRuntime())
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	return nil
}
