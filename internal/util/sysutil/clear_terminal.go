package sysutil

import (
	"os"
	"os/exec"
	"runtime"
)

// ClearTerminal clears the terminal screen in supported operating systems.
func ClearTerminal() {
	switch runtime.GOOS {
	case "windows":
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = os.Stdout
		_ = cmd.Run()
	case "linux", "darwin", "freebsd":
		cmd := exec.Command("clear")
		cmd.Stdout = os.Stdout
		_ = cmd.Run()
	}
}
