// Command rms is a command-line client for memstored.
//
//	rms [-host addr] put <key> <value>
//	rms [-host addr] get <key>
//	rms [-host addr] rm <key>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/IvanBrykalov/memstore/client"
	"github.com/IvanBrykalov/memstore/internal/store"
)

var errUsage = errors.New("usage: rms [-host addr] put <key> <value> | get <key> | rm <key>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rms:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rms", flag.ContinueOnError)
	host := fs.String("host", "127.0.0.1:9001", "memstored address")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return errUsage
	}

	c := client.New(*host, client.WithTimeout(*timeout))
	cmd, key := rest[0], rest[1]

	switch {
	case cmd == "put" && len(rest) == 3:
		return c.Put(ctx, key, store.String(rest[2]))
	case cmd == "get" && len(rest) == 2:
		v, ok, err := c.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%q not found", key)
		}
		return printValue(stdout, v)
	case cmd == "rm" && len(rest) == 2:
		removed, err := c.Remove(ctx, key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, removed)
		return err
	default:
		return errUsage
	}
}

// printValue writes strings and text blobs verbatim and maps as indented JSON.
func printValue(w io.Writer, v store.Value) error {
	switch v.Kind {
	case store.KindString:
		_, err := fmt.Fprintln(w, v.String)
		return err
	case store.KindBlob:
		if !utf8.Valid(v.Blob) {
			return errors.New("unsupported value: blob is not valid UTF-8")
		}
		_, err := fmt.Fprintln(w, string(v.Blob))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v.Map)
	}
}
