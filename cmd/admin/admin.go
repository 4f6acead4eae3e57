// Package admin implements operator commands.
package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/paularlott/cli"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// Commands returns the admin subcommands.
func Commands() []*cli.Command {
	return []*cli.Command{
		tokenCommand(),
	}
}

// tokenCommand generates an API token and the bcrypt hash to store in
// the server configuration. With --prompt it hashes an existing token
// read from the terminal instead.
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:        "token",
		Usage:       "Generate an API bearer token",
		Description: "Generate a random API token and print its bcrypt hash for the server configuration. Use --prompt to hash a token you already have.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "prompt",
				Usage: "Read the token from the terminal instead of generating one",
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var token string

			if cmd.GetBool("prompt") {
				fmt.Fprint(os.Stderr, "Token: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
				token = string(raw)
				if token == "" {
					return fmt.Errorf("empty token")
				}
			} else {
				buf := make([]byte, 32)
				if _, err := rand.Read(buf); err != nil {
					return fmt.Errorf("generating token: %w", err)
				}
				token = hex.EncodeToString(buf)
				fmt.Printf("Token:  %s\n", token)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hashing token: %w", err)
			}

			fmt.Printf("Hash:   %s\n", hash)
			fmt.Println("Store the hash as api_token in the server configuration; clients send the plain token.")
			return nil
		},
	}
}
