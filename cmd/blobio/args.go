package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/serviceuri"
)

var verbs = map[string]bool{
	"get": true, "put": true, "give": true, "take": true,
	"eat": true, "wrap": true, "roll": true,
}

// verbs that address a blob and so require --udig.
var wantUdig = map[string]bool{
	"get": true, "put": true, "give": true, "take": true, "roll": true,
}

type cliArgs struct {
	Verb       string
	Service    serviceuri.Service
	Udig       digest.Udig
	Algorithm  string
	InputPath  string
	OutputPath string
	BRRPath    string
	Trace      bool
}

func parseArgs(argv []string) (*cliArgs, error) {
	if len(argv) == 0 {
		return nil, errors.E(errors.Invalid, "missing verb")
	}
	args := &cliArgs{Verb: argv[0]}
	if !verbs[args.Verb] {
		return nil, errors.E(errors.Invalid, "unknown verb "+args.Verb)
	}

	fs := flag.NewFlagSet("blobio "+args.Verb, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	service := fs.String("service", "", "service URI (bio4:host:port, fs:path, cache4:host:port:path)")
	udig := fs.String("udig", "", "target blob udig, algorithm:digest")
	fs.StringVar(&args.Algorithm, "algorithm", "", "digest algorithm name")
	fs.StringVar(&args.InputPath, "input-path", "", "read the blob body from this file instead of stdin")
	fs.StringVar(&args.OutputPath, "output-path", "", "write the blob body to this file instead of stdout")
	fs.StringVar(&args.BRRPath, "brr-path", "", "append a blob request record to this file")
	fs.BoolVar(&args.Trace, "trace", false, "trace the exchange to stderr")
	if err := fs.Parse(argv[1:]); err != nil {
		return nil, errors.E(errors.Invalid, err)
	}
	if fs.NArg() > 0 {
		return nil, errors.E(errors.Invalid, "unexpected argument "+fs.Arg(0))
	}

	if *udig != "" && args.Algorithm != "" {
		return nil, errors.E(errors.Invalid, "--udig and --algorithm are mutually exclusive")
	}
	if *udig != "" {
		u, err := digest.Parse(*udig)
		if err != nil {
			return nil, errors.E(errors.Invalid, "--udig", err)
		}
		args.Udig = u
	}
	if wantUdig[args.Verb] && args.Udig.IsZero() {
		return nil, errors.E(errors.Invalid, args.Verb+" requires --udig")
	}
	if *service != "" {
		svc, err := serviceuri.Parse(*service)
		if err != nil {
			return nil, err
		}
		args.Service = svc
	}
	return args, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: blobio verb [options]

verbs: get put give take eat wrap roll

options:
  --service URI       bio4:host:port | fs:path | cache4:host:port:path
                      query options: ?tmo=<1..255>&trust=fs
  --udig U            target blob, algorithm:digest
  --algorithm A       digest algorithm (eat with no --udig, wrap)
  --input-path P      blob body source (put/give), default stdin
  --output-path P     blob body sink (get/take), default stdout
  --brr-path P        append a blob request record here
  --trace             trace the exchange to stderr`)
}
