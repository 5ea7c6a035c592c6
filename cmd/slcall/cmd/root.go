package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"softlayer-rpc/client"
	"softlayer-rpc/codec"
	"softlayer-rpc/config"
)

type flags struct {
	cfgFile   string
	username  string
	apiKey    string
	endpoint  string
	transport string
	timeout   time.Duration
	id        string
	masks     []string
	filter    string
	limit     int
	offset    int
	format    string
	verbose   bool
}

// NewRootCommand builds the slcall command.
func NewRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "slcall SERVICE METHOD [ARG...]",
		Short: "Call any SoftLayer API method",
		Long: `slcall invokes a method on a SoftLayer API service and prints the result.

Arguments are parsed as JSON when they are valid JSON and passed as strings
otherwise. Credentials come from ~/.softlayer, the SL_* environment variables
or the flags below, in increasing order of precedence.

Examples:
  slcall Account getObject --mask id,companyName
  slcall Virtual_Guest getObject --id 1234 --format yaml
  slcall Account getVirtualGuests --filter '{"virtualGuests":{"hostname":{"operation":"^= web"}}}' --limit 10`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, f, args)
		},
	}

	pf := root.Flags()
	pf.StringVar(&f.cfgFile, "config", "", "config file (default: ~/.softlayer)")
	pf.StringVarP(&f.username, "username", "u", "", "API username")
	pf.StringVarP(&f.apiKey, "api-key", "k", "", "API key")
	pf.StringVar(&f.endpoint, "endpoint", "", "API endpoint URL")
	pf.StringVar(&f.transport, "transport", "", "wire format: xmlrpc or soap")
	pf.DurationVar(&f.timeout, "timeout", 0, "per-call timeout (default 1m)")
	pf.StringVar(&f.id, "id", "", "object id to call the method on")
	pf.StringArrayVar(&f.masks, "mask", nil, "object mask expression, repeatable")
	pf.StringVar(&f.filter, "filter", "", "object filter as JSON")
	pf.IntVar(&f.limit, "limit", 0, "result limit")
	pf.IntVar(&f.offset, "offset", 0, "result offset, used with --limit")
	pf.StringVarP(&f.format, "format", "o", "json", "output format: json or yaml")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log every call to stderr")

	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs slcall with the process arguments.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		printError(root.ErrOrStderr(), err)
		return err
	}
	return nil
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.format != "json" && f.format != "yaml" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	if f.verbose {
		if err := loggo.ConfigureLoggers("softlayer=DEBUG"); err != nil {
			return err
		}
	}

	cfg, err := config.Load(f.cfgFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, f, cfg)

	opts := []client.Option{client.WithConfig(cfg), client.WithDebug(f.verbose)}
	if cfg.Transport != "" {
		ct, err := codec.ParseCodecType(cfg.Transport)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithCodec(ct))
	}
	cli, err := client.NewClient(opts...)
	if err != nil {
		return err
	}
	svc, err := cli.Service(args[0])
	if err != nil {
		return err
	}

	call := svc.Filter()
	if f.id != "" {
		call = call.ObjectWithID(parseArg(f.id))
	}
	if len(f.masks) > 0 {
		call = call.ObjectMask(f.masks...)
	}
	if f.filter != "" {
		var filter map[string]any
		if err := decodeJSON(f.filter, &filter); err != nil {
			return fmt.Errorf("--filter: %w", err)
		}
		call = call.ObjectFilter(filter)
	}
	if cmd.Flags().Changed("limit") {
		call = call.ResultLimit(f.offset, f.limit)
	}

	callArgs := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		callArgs = append(callArgs, parseArg(a))
	}

	result, err := call.Call(ctx, args[1], callArgs...)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), f.format, result)
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("username") {
		cfg.Username = f.username
	}
	if set("api-key") {
		cfg.APIKey = f.apiKey
	}
	if set("endpoint") {
		cfg.EndpointURL = f.endpoint
	}
	if set("transport") {
		cfg.Transport = strings.ToLower(f.transport)
	}
	if set("timeout") {
		cfg.Timeout = f.timeout
	}
}

// parseArg reads s as JSON, falling back to the plain string.
func parseArg(s string) any {
	var v any
	if err := decodeJSON(s, &v); err != nil {
		return s
	}
	return v
}

// decodeJSON keeps integers as int so they go on the wire as integers.
func decodeJSON(s string, out any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON value")
	}
	v := numbers(raw)
	switch o := out.(type) {
	case *any:
		*o = v
	case *map[string]any:
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("expected a JSON object")
		}
		*o = m
	}
	return nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = numbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbers(e)
		}
	}
	return v
}

func write(w io.Writer, format string, result any) error {
	var (
		data []byte
		err  error
	)
	if format == "yaml" {
		data, err = yaml.Marshal(result)
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
		data = buf.Bytes()
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
