// signreq signs a request for the signed API endpoints and optionally sends
// it. It is the reference signer: frontends must produce the same
// canonical form and digest.
//
// Usage:
//
//	signreq -f name=Ada -f email=ada@x.com --svg-file drawing.svg
//	signreq -f email=ada@x.com --url http://localhost:8080/api/signed/retrieve --origin http://localhost:3000
//
// The key is read from --key or FRONTEND_SIGNING_KEY.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/sakif/signature-plotter/internal/auth"
	"github.com/sakif/signature-plotter/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, getenv func(string) string) error {
	var (
		key     string
		fields  []string
		svgFile string
		url     string
		origin  string
		timeout time.Duration
	)

	flagSet := pflag.NewFlagSet("signreq", pflag.ContinueOnError)
	flagSet.StringVar(&key, "key", "", "HMAC signing key (default: $FRONTEND_SIGNING_KEY)")
	flagSet.StringArrayVarP(&fields, "field", "f", nil, "request field as key=value (repeatable)")
	flagSet.StringVar(&svgFile, "svg-file", "", "read svg_data from this file")
	flagSet.StringVar(&url, "url", "", "POST the signed request to this URL instead of printing it")
	flagSet.StringVar(&origin, "origin", "http://localhost:3000", "Origin header sent with --url")
	flagSet.DurationVar(&timeout, "timeout", 60*time.Second, "HTTP timeout for --url")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	if key == "" {
		key = getenv("FRONTEND_SIGNING_KEY")
	}
	key = config.NormalizeSecret(key)
	if key == "" {
		return errors.New("no signing key: pass --key or set FRONTEND_SIGNING_KEY")
	}

	body := make(map[string]string, len(fields)+2)
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return fmt.Errorf("field %q is not key=value", f)
		}
		body[k] = v
	}
	if svgFile != "" {
		data, err := os.ReadFile(svgFile)
		if err != nil {
			return fmt.Errorf("reading svg file: %w", err)
		}
		body["svg_data"] = string(data)
	}
	if len(body) == 0 {
		return errors.New("nothing to sign: pass at least one --field")
	}

	var params auth.Params
	for k, v := range body {
		params = params.Add(k, v)
	}
	sig, err := auth.Sign([]byte(key), params)
	if err != nil {
		return err
	}
	body[auth.SignatureField] = sig

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	if url == "" {
		_, err := fmt.Fprintln(stdout, string(payload))
		return err
	}
	return send(url, origin, timeout, payload, stdout)
}

func send(url, origin string, timeout time.Duration, payload []byte, stdout io.Writer) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(stdout, resp.Body); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return nil
}
