package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface runREPL dispatches to; *App implements
// it and tests use a stub.
type execIface interface {
	Accounts(ctx context.Context) error
	Use(ctx context.Context, id64 string) error
	Code(ctx context.Context) error
	Add(ctx context.Context) error
	Finalize(ctx context.Context) error
	Import(ctx context.Context, path string) error
	Export(ctx context.Context) error
	Renew(ctx context.Context) error
	Refresh(ctx context.Context) error
	Confirmations(ctx context.Context) error
	Respond(ctx context.Context, id, nonce string, accept bool) error
	AcceptAll(ctx context.Context) error
	Remove(ctx context.Context, id64 string) error
	ChangePassword(ctx context.Context) error
	Backup(ctx context.Context) error
}

const helpText = `Commands:
  accounts                 list stored accounts (* marks the current one)
  use <id64>               switch the current account
  code                     show the current login code
  add                      sign in and enroll a new authenticator
  finalize                 finish enrollment with the activation code
  import <path>            import an maFile or exported secrets
  export                   print the current account's secrets (asks for the vault password)
  renew                    refresh the Steam web session
  refresh                  refresh persona names and avatars
  confs                    list pending confirmations
  accept <id> <nonce>      accept a confirmation
  decline <id> <nonce>     decline a confirmation
  acceptall                accept every pending confirmation
  remove <id64>            delete an account from the vault
  passwd                   change the vault password
  backup                   upload the encrypted vault to the backup bucket
  exit | quit              leave`

// runREPL reads commands from scanner until EOF or exit. Command errors are
// printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if s := statusFn(); s != "" {
			printlnFn(fmt.Sprintf("thunder (%s)> ", s))
		} else {
			printlnFn("thunder> ")
		}
		if !scanner.Scan() {
			return
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "accounts", "ls":
			err = a.Accounts(ctx)
		case "use":
			if len(args) != 1 {
				printlnFn("Usage: use <id64>")
				continue
			}
			err = a.Use(ctx, args[0])
		case "code":
			err = a.Code(ctx)
		case "add":
			err = a.Add(ctx)
		case "finalize":
			err = a.Finalize(ctx)
		case "import":
			if len(args) != 1 {
				printlnFn("Usage: import <path>")
				continue
			}
			err = a.Import(ctx, args[0])
		case "export":
			err = a.Export(ctx)
		case "renew":
			err = a.Renew(ctx)
		case "refresh":
			err = a.Refresh(ctx)
		case "confs":
			err = a.Confirmations(ctx)
		case "accept", "decline":
			if len(args) != 2 {
				printlnFn(fmt.Sprintf("Usage: %s <id> <nonce>", cmd))
				continue
			}
			err = a.Respond(ctx, args[0], args[1], cmd == "accept")
		case "acceptall":
			err = a.AcceptAll(ctx)
		case "remove":
			if len(args) != 1 {
				printlnFn("Usage: remove <id64>")
				continue
			}
			err = a.Remove(ctx, args[0])
		case "passwd":
			err = a.ChangePassword(ctx)
		case "backup":
			err = a.Backup(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
