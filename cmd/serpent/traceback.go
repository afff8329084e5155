package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/serpent/object"
)

var (
	excColor      = color.New(color.FgRed, color.Bold)
	locationColor = color.New(color.FgCyan)
)

// printException renders an uncaught language exception the way the
// interpreter's users expect: outermost frame first, the exception last.
func printException(raised *object.RaisedError) {
	exc := raised.Exception()
	if exc == nil {
		fmt.Fprintln(os.Stderr, excColor.Sprint(raised.Error()))
		return
	}
	frames := exc.Frames()
	if len(frames) > 0 {
		fmt.Fprintln(os.Stderr, "Traceback (most recent call last):")
		// Frames accumulate innermost first while the exception unwinds.
		for i := len(frames) - 1; i >= 0; i-- {
			loc := frames[i].Location
			fmt.Fprintf(os.Stderr, "  File %s, line %d, in %s\n",
				locationColor.Sprintf("%q", loc.Filename), loc.Line, frames[i].Function)
			if loc.Source != "" {
				fmt.Fprintf(os.Stderr, "    %s\n", loc.Source)
			}
		}
	}
	fmt.Fprintln(os.Stderr, excColor.Sprint(exc.String()))
}
