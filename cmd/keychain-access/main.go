package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

// Set with -ldflags at build time.
var (
	version  = "v0"
	revision = "n/a"
)

const usage = `Usage: %s [-vh] [-p <password>] <key_name>
Options:
  -p <password>   Encrypt exported private keys with <password>.
                  The default is to export them without a password.
  -h              Show this information.
  -v              Print current version number.
  <key_name>      The name of the keychain item you want to access.
                  Has to be a public or private key.
`

type cli struct {
	Version  kong.VersionFlag `short:"v" help:"Print current version number."`
	Password password         `short:"p" placeholder:"<password>" help:"Encrypt exported private keys with <password>."`
	KeyNames []string         `arg:"" optional:"" name:"key_name" help:"The name of the keychain item you want to access."`
}

// environment is everything a run needs from the outside world.
type environment struct {
	stdout    io.Writer
	stderr    io.Writer
	getenv    func(string) string
	openStore storeOpener
}

// exitCode is panicked by kong's exit hook and recovered by run.
type exitCode int

func main() {
	code := run(os.Args, &environment{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		getenv:    os.Getenv,
		openStore: openStore,
	})

	memguard.Purge()
	os.Exit(code)
}

func run(args []string, env *environment) (code int) {
	name := filepath.Base(args[0])

	defer func() {
		if r := recover(); r != nil {
			exit, ok := r.(exitCode)
			if !ok {
				panic(r)
			}

			code = int(exit)
		}
	}()

	var cli cli

	parser, err := kong.New(&cli,
		kong.Name(name),
		kong.Writers(env.stdout, env.stderr),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
		kong.Help(func(_ kong.HelpOptions, ctx *kong.Context) error {
			return printUsage(ctx.Stdout, name)
		}),
		kong.Vars{"version": fmt.Sprintf("%s %s (%s)", "keychain-access", version, revision)},
	)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	if err != nil {
		// Report -p problems the way getopt would, without kong's long flag name.
		var perr *passwordError
		if errors.As(err, &perr) {
			return usageError(env.stderr, name, perr.Error())
		}

		return usageError(env.stderr, name, err.Error())
	}

	// Exactly one key name is required.
	switch {
	case len(cli.KeyNames) == 0:
		return usageError(env.stderr, name, "Missing key name.")
	case len(cli.KeyNames) > 1:
		return usageError(env.stderr, name, "Too many key names given.")
	}

	if err := ctx.Run(env); err != nil {
		_, _ = fmt.Fprintf(env.stderr, "%s: %v\n", name, err)

		return 1
	}

	return 0
}

func printUsage(w io.Writer, name string) error {
	_, err := fmt.Fprintf(w, usage, name)

	return err
}

func usageError(w io.Writer, name, msg string) int {
	_, _ = fmt.Fprintf(w, "%s: %s\n", name, msg)
	_ = printUsage(w, name)

	return 1
}

func askPassphrase(prompt string) (string, error) {
	defer func() { _, _ = fmt.Fprintln(os.Stderr) }()

	_, _ = fmt.Fprint(os.Stderr, prompt)

	// keyring.PromptFunc returns a string, so the password can't be wiped afterwards.
	b, err := term.ReadPassword(int(os.Stdin.Fd()))

	return string(b), err
}
