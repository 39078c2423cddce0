// Command h2get fetches a single URL over HTTP/2 using this module's
// client and prints the status and the body; response headers are not
// printed. It exists to exercise Client end to end against a real server
// outside of the test suite's scripted transport.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/crosshttp/h2c"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	body := flag.String("data", "", "send this body as a POST instead of a GET")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: h2get [flags] https://host[:port]/path")
		os.Exit(2)
	}
	target := flag.Arg(0)

	u, err := url.Parse(target)
	if err != nil {
		log.Fatalf("parse url: %s", err)
	}
	addr := u.Host
	if u.Port() == "" {
		addr += ":443"
	}

	cl, err := http2.Dial(addr)
	if err != nil {
		log.Fatalf("dial %s: %s", addr, err)
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var status int
	var respBody []byte

	if *body != "" {
		resp, err := cl.PostJSON(ctx, target, []byte(*body))
		if err != nil {
			log.Fatalf("post: %s", err)
		}
		status, respBody = resp.StatusCode(), resp.Body()
	} else {
		resp, err := cl.Get(ctx, target)
		if err != nil {
			log.Fatalf("get: %s", err)
		}
		status, respBody = resp.StatusCode(), resp.Body()
	}

	fmt.Printf("status: %d\n", status)
	os.Stdout.Write(respBody)
	fmt.Println()
}
