// Command h2bench fires the same sequence of GET requests at a server
// through both this module's Client and the standard library's HTTP/2
// transport (golang.org/x/net/http2), reporting wall-clock time for each
// and flagging any response body mismatch. It plays the comparison role
// the teacher's benchmark/nethttp2 tool plays against benchmark/fasthttp2,
// but client-side: this module has no server to benchmark.
package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/http2"

	ourhttp2 "github.com/crosshttp/h2c"
)

func main() {
	n := flag.Int("n", 100, "number of requests to send through each client")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: h2bench [flags] https://host[:port]/path")
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

	ours, oursDur, err := runOurs(addr, target, *n, *insecure)
	if err != nil {
		log.Fatalf("this module's client: %s", err)
	}
	theirs, theirDur, err := runStdlib(target, *n, *insecure)
	if err != nil {
		log.Fatalf("golang.org/x/net/http2: %s", err)
	}

	fmt.Printf("this module:            %d requests in %s (%s/req)\n", *n, oursDur, oursDur/time.Duration(*n))
	fmt.Printf("golang.org/x/net/http2: %d requests in %s (%s/req)\n", *n, theirDur, theirDur/time.Duration(*n))

	mismatches := 0
	for i := range ours {
		if !bytes.Equal(ours[i], theirs[i]) {
			mismatches++
		}
	}
	fmt.Printf("body mismatches: %d/%d\n", mismatches, *n)
}

func runOurs(addr, target string, n int, insecure bool) ([][]byte, time.Duration, error) {
	d := &ourhttp2.Dialer{Addr: addr}
	if insecure {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	conn, err := d.Dial(ourhttp2.ConnOpts{})
	if err != nil {
		return nil, 0, err
	}
	cl := ourhttp2.NewClient(conn)
	defer cl.Close()

	bodies := make([][]byte, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		resp, err := cl.Get(context.Background(), target)
		if err != nil {
			return nil, 0, err
		}
		bodies[i] = append([]byte(nil), resp.Body()...)
	}
	return bodies, time.Since(start), nil
}

func runStdlib(target string, n int, insecure bool) ([][]byte, time.Duration, error) {
	tr := &http2.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
	}
	client := &http.Client{Transport: tr}

	bodies := make([][]byte, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		resp, err := client.Get(target)
		if err != nil {
			return nil, 0, err
		}
		b, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, 0, err
		}
		bodies[i] = b
	}
	return bodies, time.Since(start), nil
}
