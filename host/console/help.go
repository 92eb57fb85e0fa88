package console

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	keyColor    = color.New(color.FgGreen, color.Bold)
	dimColor    = color.New(color.FgHiBlack)

	infoColor  = color.New(color.FgBlue)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
)

// PrintHelp writes the key map
func PrintHelp(w io.Writer) {
	headerColor.Fprintln(w, "fractal host: keys")
	for _, k := range Keys {
		keyColor.Fprintf(w, "  %c", k.Key)
		fmt.Fprintf(w, "  %s\n", k.Help)
	}
	dimColor.Fprintln(w, "  line mode also accepts: set KEY VALUE (c_re, c_im, iterations, width, height, chunk_width, chunk_height, export)")
}

// Info prints an informational status line
func Info(w io.Writer, format string, args ...any) {
	infoColor.Fprint(w, "INFO: ")
	fmt.Fprintf(w, format+"\n", args...)
}

// Warn prints a warning status line
func Warn(w io.Writer, format string, args ...any) {
	warnColor.Fprint(w, "WARN: ")
	fmt.Fprintf(w, format+"\n", args...)
}

// Error prints an error status line
func Error(w io.Writer, format string, args ...any) {
	errorColor.Fprint(w, "ERROR: ")
	fmt.Fprintf(w, format+"\n", args...)
}
