// Command blobio-frisk-brr verifies a blob request record log: every line
// must parse per the BRR grammar and re-serialize byte-identically.
//
//	blobio-frisk-brr [file ...]
//
// With no file arguments the log is read from stdin. Exit status: 0 when
// every line frisks cleanly, 1 when any line fails, 2 on a bad argument
// or unreadable file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jmscott/blobio/brr"
)

func main() {
	quiet := flag.Bool("quiet", false, "suppress per-line diagnostics")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		os.Exit(friskAll("stdin", os.Stdin, *quiet))
	}

	exit := 0
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "blobio-frisk-brr: %v\n", err)
			os.Exit(2)
		}
		if code := friskAll(path, f, *quiet); code > exit {
			exit = code
		}
		f.Close()
	}
	os.Exit(exit)
}

func friskAll(name string, r io.Reader, quiet bool) int {
	result, err := brr.Frisk(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobio-frisk-brr: %s: %v\n", name, err)
		return 2
	}
	if !quiet {
		for _, fe := range result.Errors {
			fmt.Fprintf(os.Stderr, "blobio-frisk-brr: %s: %v\n", name, fe)
		}
	}
	if !result.OK() {
		return 1
	}
	return 0
}
