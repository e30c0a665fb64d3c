package ui

import (
	"fmt"
	"io"
)

// Version information, overridable at build time via ldflags:
// go build -ldflags "-X github.com/quirkscan/quirkscan/pkg/ui.Version=1.0.0"
var (
	Version = "0.3.0"
	Commit  = "dev"
)

const banner = `
  __ _ _   _(_)_ __| | _____  ___ __ _ _ __
 / _` + "`" + ` | | | | | '__| |/ / __|/ __/ _` + "`" + ` | '_ \
| (_| | |_| | | |  |   <\__ \ (_| (_| | | | |
 \__, |\__,_|_|_|  |_|\_\___/\___\__,_|_| |_|
    |_|
`

// PrintBanner writes the startup banner to w. Plain text when the
// terminal cannot render colors.
func PrintBanner(w io.Writer) {
	if !ColorTerminal() {
		fmt.Fprintf(w, "%s\nquirkscan %s (%s)\n\n", banner, Version, Commit)
		return
	}
	fmt.Fprintln(w, BannerStyle.Render(banner))
	fmt.Fprintf(w, "%s %s\n\n",
		VersionStyle.Render("quirkscan "+Version),
		SubtitleStyle.Render("("+Commit+")"))
}
