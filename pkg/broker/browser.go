package broker

import (
	"os/exec"
	"runtime"
)

// openBrowser hands a URL to the platform browser launcher. The spawned
// process gets no access to our stdout; the credential protocol stream must
// stay clean even when the browser prints startup chatter.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
