// Command blobio is the protocol client: one verb per invocation against
// a bio4, fs, or cache4 service.
//
//	blobio get --service bio4:localhost:1797 --udig sha:... --output-path f
//	blobio put --service fs:/var/lib/blobio --input-path f --udig sha:...
//	blobio eat --udig sha:... --input-path f          # local digest check
//	blobio wrap --service bio4:localhost:1797
//
// Exit status: 0 ok, 1 no, 2 bad argument, 16 digest-module fault,
// 17 service fault, 18 OS fault.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jmscott/blobio/client"
	"github.com/jmscott/blobio/digest"
	"github.com/jmscott/blobio/errors"
	"github.com/jmscott/blobio/log"
)

const (
	exitOK           = 0
	exitNo           = 1
	exitBadArg       = 2
	exitDigestFault  = 16
	exitServiceFault = 17
	exitOSFault      = 18
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := parseArgs(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobio: %v\n", err)
		usage(os.Stderr)
		return exitBadArg
	}
	if args.Trace {
		log.SetLevel(log.Debug)
	}

	// eat with no service is the purely local form: digest the input and
	// report whether it matches --udig (or print the digest when only
	// --algorithm was given).
	if args.Verb == "eat" && args.Service.Scheme == "" {
		return localEat(args)
	}
	if args.Service.Scheme == "" {
		fmt.Fprintln(os.Stderr, "blobio: --service is required")
		return exitBadArg
	}

	drv, err := client.New(args.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobio: %v\n", err)
		return exitBadArg
	}
	defer drv.Close()

	ctx := context.Background()
	start := time.Now()
	ok, size, err := dispatch(ctx, drv, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobio: %s: %v\n", args.Verb, err)
		return faultExit(err)
	}
	if args.BRRPath != "" {
		if brrErr := appendBRR(args, start, ok, size); brrErr != nil {
			fmt.Fprintf(os.Stderr, "blobio: %v\n", brrErr)
			return exitOSFault
		}
	}
	if !ok {
		return exitNo
	}
	return exitOK
}

func dispatch(ctx context.Context, drv client.Driver, args *cliArgs) (bool, int64, error) {
	switch args.Verb {
	case "get":
		dst, cleanup, err := openOutput(args.OutputPath)
		if err != nil {
			return false, 0, err
		}
		ok, n, err := drv.Get(ctx, args.Udig, dst)
		return ok, n, cleanup(ok, err)

	case "take":
		dst, cleanup, err := openOutput(args.OutputPath)
		if err != nil {
			return false, 0, err
		}
		ok, n, err := drv.Take(ctx, args.Udig, dst)
		return ok, n, cleanup(ok, err)

	case "put", "give":
		src, closeSrc, err := openInput(args.InputPath)
		if err != nil {
			return false, 0, err
		}
		defer closeSrc()
		var ok bool
		var n int64
		if args.Verb == "put" {
			ok, n, err = drv.Put(ctx, args.Udig, src)
		} else {
			ok, n, err = drv.Give(ctx, args.Udig, src)
		}
		if err == nil && ok && args.Verb == "give" && args.InputPath != "" {
			// The service holds the blob; honoring give's ownership
			// transfer, forget our copy.
			if rmErr := os.Remove(args.InputPath); rmErr != nil {
				log.Error.Printf("blobio: give: remove %s: %v", args.InputPath, rmErr)
			}
		}
		return ok, n, err

	case "eat":
		ok, err := drv.Eat(ctx, args.Udig)
		return ok, 0, err

	case "wrap":
		set, ok, err := drv.Wrap(ctx, args.Algorithm)
		if err != nil || !ok {
			return ok, 0, err
		}
		fmt.Println(set)
		args.Udig = set
		return true, 0, nil

	case "roll":
		ok, err := drv.Roll(ctx, args.Udig)
		return ok, 0, err
	}
	return false, 0, errors.E(errors.Invalid, "unknown verb "+args.Verb)
}

// localEat digests --input-path (or stdin) with no service involved.
func localEat(args *cliArgs) int {
	algName := args.Algorithm
	if algName == "" {
		algName = args.Udig.Algorithm
	}
	alg, ok := digest.Lookup(algName)
	if !ok {
		fmt.Fprintf(os.Stderr, "blobio: unknown algorithm %q\n", algName)
		return exitDigestFault
	}
	src, closeSrc, err := openInput(args.InputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "blobio: %v\n", err)
		return exitOSFault
	}
	defer closeSrc()

	w := digest.NewWriter(alg)
	if _, err := io.Copy(w, src); err != nil {
		fmt.Fprintf(os.Stderr, "blobio: eat: %v\n", err)
		return exitOSFault
	}
	u := w.Udig()
	if args.Udig.IsZero() {
		fmt.Println(u)
		return exitOK
	}
	if u != args.Udig {
		return exitNo
	}
	return exitOK
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.E(errors.NotExist, "open "+path, err)
	}
	return f, func() { f.Close() }, nil
}

// openOutput defers the choice between stdout and a fresh output file,
// returning a cleanup that removes a partial file when the exchange did
// not deliver a verified blob.
func openOutput(path string) (io.Writer, func(ok bool, err error) error, error) {
	if path == "" {
		return os.Stdout, func(_ bool, err error) error { return err }, nil
	}
	f, cerr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if cerr != nil {
		return nil, nil, errors.E(errors.Exists, "create "+path, cerr)
	}
	return f, func(ok bool, err error) error {
		f.Close()
		if err != nil || !ok {
			os.Remove(path) //nolint:errcheck // best-effort cleanup
		}
		return err
	}, nil
}

func faultExit(err error) int {
	switch {
	case errors.Is(errors.Invalid, err):
		return exitBadArg
	case errors.Is(errors.Integrity, err):
		return exitDigestFault
	case errors.Is(errors.Net, err), errors.Is(errors.Unavailable, err),
		errors.Is(errors.Timeout, err), errors.Is(errors.NotSupported, err):
		return exitServiceFault
	default:
		return exitOSFault
	}
}
