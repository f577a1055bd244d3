package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jmscott/blobio/brr"
	"github.com/jmscott/blobio/errors"
)

// appendBRR records this invocation's own request in the file named by
// --brr-path, the client side of the audit trail. The chat history is
// reconstructed from the verb and the ok/no outcome: the driver already
// collapsed the exchange's intermediate acknowledgements into its
// boolean result.
func appendBRR(args *cliArgs, start time.Time, ok bool, size int64) error {
	udig := ""
	if !args.Udig.IsZero() {
		udig = args.Udig.String()
	}
	rec := brr.Record{
		Timestamp:    start,
		Transport:    transportOf(args),
		Verb:         args.Verb,
		Udig:         udig,
		ChatHistory:  chatOf(args.Verb, ok),
		Size:         size,
		WallDuration: time.Since(start),
	}
	f, err := os.OpenFile(args.BRRPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return errors.E(errors.Unavailable, "open "+args.BRRPath, err)
	}
	defer f.Close()
	if _, err := f.WriteString(rec.String()); err != nil {
		return errors.E(errors.Unavailable, "append "+args.BRRPath, err)
	}
	return nil
}

func transportOf(args *cliArgs) string {
	svc := args.Service
	switch svc.Scheme {
	case "bio4":
		return fmt.Sprintf("bio4~%s:%d", svc.Host, svc.Port)
	case "fs":
		return "fs~" + svc.Root
	case "cache4":
		return fmt.Sprintf("cache4~%s:%d:%s", svc.Host, svc.Port, svc.Root)
	default:
		return "null~"
	}
}

// chatOf rebuilds the comma-joined chat history from the initiator's
// viewpoint of each verb's exchange.
func chatOf(verb string, ok bool) string {
	if ok {
		switch verb {
		case "get", "eat":
			return brr.ChatOK
		case "put", "wrap", "roll":
			return brr.ChatOKOK
		case "give", "take":
			return brr.ChatOKOKOK
		}
	}
	switch verb {
	case "put", "give":
		return brr.ChatOKNo
	default:
		return brr.ChatNo
	}
}
