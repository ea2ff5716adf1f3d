// Command classlens decides whether a classroom video shows a class in
// progress: it samples frames with ffmpeg, classifies each frame with a
// vision model, and majority-votes the per-frame labels into a verdict.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
