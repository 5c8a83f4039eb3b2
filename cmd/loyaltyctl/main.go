// Command loyaltyctl is a small client for the loyalty ledger API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/loyalty_layer/internal/app/services/scans"
	"github.com/R3E-Network/loyalty_layer/internal/cli"
	"github.com/R3E-Network/loyalty_layer/internal/httputil"
)

const usage = `Usage: loyaltyctl [--server URL] [--field PATH] <command> [flags]

Commands:
  scan --user ID --store ID [--name NAME] [--picture URL]
  user --user ID
  stores
  health
  completion bash|zsh
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type globals struct {
	server  string
	field   string
	timeout time.Duration
}

func run(args []string, stdout, stderr io.Writer) int {
	out := cli.NewPrinter(stderr)

	global := pflag.NewFlagSet("loyaltyctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	var g globals
	global.StringVar(&g.server, "server", envOr("LOYALTY_SERVER", "http://localhost:8080"), "API base URL")
	global.StringVar(&g.field, "field", "", "gjson path to extract from the response")
	global.DurationVar(&g.timeout, "timeout", 10*time.Second, "request timeout")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	client := httputil.NewClient(httputil.ClientConfig{BaseURL: g.server, Timeout: g.timeout})
	ctx := context.Background()

	var (
		body []byte
		err  error
	)
	switch rest[0] {
	case "scan":
		body, err = scanCommand(ctx, client, rest[1:], stderr)
	case "user":
		body, err = userCommand(ctx, client, rest[1:], stderr)
	case "stores":
		body, err = get(ctx, client, "/stores")
	case "health":
		body, err = get(ctx, client, "/health")
	case "completion":
		if len(rest) != 2 {
			out.Error("completion requires a shell name")
			return 2
		}
		if err := cli.WriteCompletion(stdout, rest[1]); err != nil {
			out.Error(err.Error())
			return 2
		}
		return 0
	default:
		out.Error(fmt.Sprintf("unknown command %q", rest[0]))
		global.Usage()
		return 2
	}

	if err != nil {
		var usageErr usageError
		if errors.As(err, &usageErr) {
			out.Error(usageErr.Error())
			return 2
		}
		out.Error(err.Error())
		return 1
	}

	if g.field != "" {
		res := gjson.GetBytes(body, g.field)
		if !res.Exists() {
			out.Error(fmt.Sprintf("field %q not present in response", g.field))
			return 1
		}
		fmt.Fprintln(stdout, res.String())
		return 0
	}
	fmt.Fprintln(stdout, strings.TrimSpace(string(body)))
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func scanCommand(ctx context.Context, client *httputil.Client, args []string, stderr io.Writer) ([]byte, error) {
	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var req scans.ScanRequest
	fs.StringVar(&req.UserID, "user", "", "user id")
	fs.StringVar(&req.StoreID, "store", "", "store id")
	fs.StringVar(&req.DisplayName, "name", "", "display name")
	fs.StringVar(&req.PictureURL, "picture", "", "profile picture URL")
	if err := fs.Parse(args); err != nil {
		return nil, usageError{msg: err.Error()}
	}
	if req.UserID == "" || req.StoreID == "" {
		return nil, usageError{msg: "scan requires --user and --store"}
	}

	resp, err := client.Post(ctx, "/scan", req)
	if err != nil {
		return nil, err
	}
	var body []byte
	if err := httputil.DecodeResponse(resp, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func userCommand(ctx context.Context, client *httputil.Client, args []string, stderr io.Writer) ([]byte, error) {
	fs := pflag.NewFlagSet("user", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	userID := fs.String("user", "", "user id")
	if err := fs.Parse(args); err != nil {
		return nil, usageError{msg: err.Error()}
	}
	if *userID == "" {
		return nil, usageError{msg: "user requires --user"}
	}
	return get(ctx, client, "/scan?userId="+url.QueryEscape(*userID))
}

func get(ctx context.Context, client *httputil.Client, path string) ([]byte, error) {
	resp, err := client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var body []byte
	if err := httputil.DecodeResponse(resp, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
