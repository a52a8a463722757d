package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/matheus3301/courier/internal/auth"
	"github.com/matheus3301/courier/internal/config"
	"github.com/matheus3301/courier/internal/control"
	"github.com/matheus3301/courier/internal/instance"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// init runs before any config exists.
	if args[0] == "init" {
		cmdInit()
		return
	}

	instanceName := instance.Resolve(*instanceFlag)
	if err := instance.ValidateName(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, instanceName, *jsonFlag)
	case "token":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: courierctl token <user-id>")
			os.Exit(1)
		}
		cmdToken(args[1])
	case "instances":
		if len(args) >= 2 && args[1] == "list" {
			cmdInstancesList(ctx, *jsonFlag)
		} else {
			fmt.Fprintln(os.Stderr, "usage: courierctl instances list")
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: courierctl [--instance <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init              Write a config with a fresh signing secret")
	fmt.Fprintln(os.Stderr, "  status            Show whether the daemon is serving")
	fmt.Fprintln(os.Stderr, "  token <user-id>   Mint a bearer token for a user")
	fmt.Fprintln(os.Stderr, "  instances list    List known instances")
}

func cmdInit() {
	path := instance.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "error: %s already exists\n", path)
		os.Exit(1)
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Default()
	cfg.DefaultInstance = instance.DefaultName
	cfg.Auth.JWTSecret = hex.EncodeToString(secret)
	if err := config.Save(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

type statusOutput struct {
	Instance string `json:"instance"`
	Socket   string `json:"socket"`
	Running  bool   `json:"running"`
	Serving  bool   `json:"serving"`
}

func probe(ctx context.Context, name string) statusOutput {
	out := statusOutput{Instance: name, Socket: instance.SocketPath(name)}
	c, err := control.Dial(out.Socket)
	if err != nil {
		return out
	}
	defer func() { _ = c.Close() }()
	serving, err := c.Serving(ctx)
	if err != nil {
		return out
	}
	out.Running = true
	out.Serving = serving
	return out
}

func cmdStatus(ctx context.Context, name string, jsonOut bool) {
	out := probe(ctx, name)
	if jsonOut {
		outputJSON(out)
		return
	}
	if !out.Running {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon for instance %q at %s\n", name, out.Socket)
		os.Exit(1)
	}
	state := "NOT_SERVING"
	if out.Serving {
		state = "SERVING"
	}
	fmt.Printf("Instance: %s\n", out.Instance)
	fmt.Printf("Status:   %s\n", state)
}

func cmdToken(userID string) {
	cfg, err := config.LoadOrDefault(instance.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	tok, err := tokens.Issue(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}

func cmdInstancesList(ctx context.Context, jsonOut bool) {
	entries, err := os.ReadDir(filepath.Join(instance.BaseDir(), "instances"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var all []statusOutput
	for _, e := range entries {
		if e.IsDir() {
			all = append(all, probe(ctx, e.Name()))
		}
	}
	if jsonOut {
		outputJSON(all)
		return
	}
	if len(all) == 0 {
		fmt.Println("No instances found.")
		return
	}
	for _, s := range all {
		running := "stopped"
		if s.Running {
			running = "running"
		}
		fmt.Printf("%-20s %s (%s)\n", s.Instance, filepath.Dir(s.Socket), running)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
