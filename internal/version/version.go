package version

import "fmt"

const (
	Version = "v0.1.0"

	colorReset    = "\033[0m"
	colorCyanBold = "\033[36;1m"
)

// asciiArtTpl returns the ASCII art banner of fluentlite.
func asciiArtTpl() string {
	asciiArt := `
   ______              __  __    _ __
  / __/ /_  _____  ___/ /_/ /   (_) /____
 / /_/ / / / / _ \/ __ \/ /    / / __/ _ \
/ __/ / /_/ /  __/ / / / /___ / / /_/  __/
/_/ /_/\__,_/\___/_/ /_/_____/_/\__/\___/
%s ` + Version + `
For more information visit https://github.com/fluentlite/fluentlite`

	asciiArt = asciiArt[1:]                          // This just removes the first newline character
	asciiArt = colorCyanBold + asciiArt + colorReset // Add color to the ASCII art

	return asciiArt
}

// CLIVersion returns the banner shown by the interactive shell.
func CLIVersion() string {
	return fmt.Sprintf(asciiArtTpl(), "Shell")
}

// LibraryVersion returns the plain library version string.
func LibraryVersion() string {
	return Version
}
