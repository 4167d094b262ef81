// Command bb is a CLI client for the BrainBoard service.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/and161185/brainboard/internal/client"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "brainboard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "brainboard")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tokenFile{}, errors.New("not logged in (run: bb login)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return tokenFile{}, errors.New("no valid token (login required)")
	}
	return tf, nil
}

// ---- app ----

// app carries the global flags shared by every command.
type app struct {
	addr      string
	httpURL   string
	caPath    string
	insecure  bool
	plaintext bool
	log       *zap.Logger
	out       io.Writer
}

// connect dials the server, authenticated when token is set.
func (a *app) connect(token string) (*grpc.ClientConn, *client.Client, error) {
	cc, err := client.Dial(client.DialOptions{
		Addr:       a.addr,
		CACert:     a.caPath,
		SkipVerify: a.insecure,
		Plaintext:  a.plaintext,
		Token:      token,
	})
	if err != nil {
		return nil, nil, err
	}
	return cc, client.New(cc), nil
}

// authed dials with the stored token.
func (a *app) authed() (tokenFile, *grpc.ClientConn, *client.Client, error) {
	tf, err := loadToken()
	if err != nil {
		return tokenFile{}, nil, nil, err
	}
	cc, cli, err := a.connect(tf.AccessToken)
	if err != nil {
		return tokenFile{}, nil, nil, err
	}
	return tf, cc, cli, nil
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `bb CLI
Usage:
  bb [-addr HOST:PORT] [-http URL] [-cacert file | -insecure | -plaintext] [-v] <cmd> [args]

Commands:
  version
  register  -u <username> -p <password>
  login     -u <username> -p <password>            (saves token)
  logout
  board     create -title T | ls | show -board ID
  invite    create -board ID -role editor|viewer [-ttl 24h] | ls -board ID
            revoke -id ID | accept -token T
  node      add -board ID -kind note|link|image|video|checklist|pomodoro [-x X -y Y] [-text|-url|-title|-video]
            move -board ID -node ID -x X -y Y | resize -board ID -node ID -w W -h H
            color -board ID -node ID -color C | edit -board ID -node ID -text HTML
            rm -board ID -node ID | analyze -board ID -node ID -action reorganize|summarize
  edge      add -board ID -from ID -to ID | rm -board ID -edge ID
  check     add|toggle|move|recur|rm|ls -board ID -node ID [-text T] [-item ID] [-from N -to N] [-rule daily]
  focus     start|pause|stop|status|run -board ID -node ID
  rewards
  watch     -board ID [-entity node,edge,...] [-node ID]
  upload    -board ID -file PATH [-name NAME] [-x X -y Y]   (creates an image node)
`)
	os.Exit(2)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses global flags and dispatches the subcommand.
func main() {
	addr := flag.String("addr", "localhost:8443", "server gRPC addr")
	httpURL := flag.String("http", "http://localhost:8080", "server HTTP base URL (uploads)")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (dev server started with -dev)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	a := &app{
		addr:      *addr,
		httpURL:   *httpURL,
		caPath:    *caPath,
		insecure:  *insecure,
		plaintext: *plaintext,
		log:       logger,
		out:       os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Args()); err != nil {
		fail(err)
	}
}

// run executes one command. Long-running commands (watch, focus run) end with ctx.
func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	if cmd != "watch" && !(cmd == "focus" && len(rest) > 0 && rest[0] == "run") {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	switch cmd {
	case "version":
		fmt.Fprintf(a.out, "bb %s (%s)\n", version, buildDate)
		return nil
	case "register":
		return a.cmdRegister(ctx, rest)
	case "login":
		return a.cmdLogin(ctx, rest)
	case "logout":
		if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	case "board":
		return a.cmdBoard(ctx, rest)
	case "invite":
		return a.cmdInvite(ctx, rest)
	case "node":
		return a.cmdNode(ctx, rest)
	case "edge":
		return a.cmdEdge(ctx, rest)
	case "check":
		return a.cmdCheck(ctx, rest)
	case "focus":
		return a.cmdFocus(ctx, rest)
	case "rewards":
		return a.cmdRewards(ctx)
	case "watch":
		return a.cmdWatch(ctx, rest)
	case "upload":
		return a.cmdUpload(ctx, rest)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "bb:", err)
	os.Exit(1)
}
