package web

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ErrUnsupportedPlatform is returned by OpenBrowser on an OS it has no
// launcher command for.
var ErrUnsupportedPlatform = errors.New("web: unsupported platform")

// OpenBrowser launches the OS default browser at url.
func OpenBrowser(url string) error {
	ctx := context.Background()
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
	}

	return cmd.Start()
}
