package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/congo-pay/custody/internal/app"
	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/registry"
)

type opener func(ctx context.Context) (*app.App, error)

// cli carries the state shared by every subcommand.
type cli struct {
	open   opener
	in     *bufio.Reader
	stdin  io.Reader
	out    io.Writer
	prompt io.Writer
	app    *app.App
	secret string
}

func newRootCmd(open opener, stdin io.Reader, out, prompt io.Writer) *cobra.Command {
	c := &cli{open: open, in: bufio.NewReader(stdin), stdin: stdin, out: out, prompt: prompt}

	root := &cobra.Command{
		Use:          "bankctl",
		Short:        "Manage local bank accounts, keys and the active session",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.SetOut(out)
	root.SetErr(prompt)
	root.PersistentFlags().StringVar(&c.secret, "password", "", "account password (prompted when omitted)")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.roleCmd(),
		c.accountsCmd(),
		c.showCmd(),
		c.addressCmd(),
		c.passwdCmd(),
		c.deleteCmd(),
		c.unlockCmd(),
		c.idCmd(),
		c.sweepCmd(),
	)
	return root
}

// password returns the --password flag, or prompts for one. Input is not
// echoed when stdin is a terminal.
func (c *cli) password(prompt string) (string, error) {
	if c.secret != "" {
		return c.secret, nil
	}
	fmt.Fprint(c.prompt, prompt)
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) printProfile(p registry.Profile) {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id:\t%s\n", p.ShortUUID)
	fmt.Fprintf(w, "uuid:\t%s\n", p.UUID)
	fmt.Fprintf(w, "name:\t%s\n", p.FullName)
	fmt.Fprintf(w, "email:\t%s\n", p.Email)
	fmt.Fprintf(w, "phone:\t%s%s\n", p.PhoneCountryCode, p.Phone)
	fmt.Fprintf(w, "country:\t%s\n", p.Country)
	fmt.Fprintf(w, "address:\t%s\n", p.WalletAddress)
	fmt.Fprintf(w, "network:\t%s (%d)\n", p.Network, p.ChainID)
	fmt.Fprintf(w, "role:\t%s\n", p.Role)
	w.Flush()
}

func (c *cli) registerCmd() *cobra.Command {
	var in auth.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with a fresh wallet key and log it in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := c.password("Password: ")
			if err != nil {
				return err
			}
			in.Password = pw
			profile, err := c.app.Auth.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			c.printProfile(profile)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Country, "country", "", "country code")
	f.StringVar(&in.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	f.StringVar(&in.PhoneCountryCode, "phone-code", "", "phone country code")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.PrivateKey, "private-key", "", "import this hex private key instead of generating one")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <id>",
		Short: "Verify the password of an account and make it the active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password("Password: ")
			if err != nil {
				return err
			}
			profile, err := c.app.Auth.Login(cmd.Context(), args[0], pw)
			if err != nil {
				if errors.Is(err, auth.ErrAddressMismatch) {
					return errors.New("invalid credentials")
				}
				return err
			}
			fmt.Fprintf(c.out, "logged in as %s (%s)\n", profile.ShortUUID, profile.WalletAddress)
			return nil
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "logged out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			s := c.app.Sessions.Current()
			if s.Authenticated() {
				fmt.Fprintf(c.out, "%s %s (role %s)\n", s.Kind, s.AccountID, s.Role)
				return nil
			}
			fmt.Fprintf(c.out, "%s (role %s)\n", s.Kind, s.Role)
			return nil
		},
	}
}

func (c *cli) roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <guest|bank|relief>",
		Short: "Switch to an anonymous role session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Sessions.AssumeRole(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "role %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List registered accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := c.app.Registry.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(c.out, "No accounts found.")
				return nil
			}
			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDRESS\tROLE")
			for _, id := range ids {
				p := all[id]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, p.FullName, p.WalletAddress, p.Role)
			}
			return w.Flush()
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one account profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := c.app.Registry.FindByIdentifier(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.printProfile(profile)
			return nil
		},
	}
}

func (c *cli) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <id|uuid>",
		Short: "Print the public address of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := c.app.Auth.ResolveAddress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, address)
			return nil
		},
	}
}

func (c *cli) passwdCmd() *cobra.Command {
	var next string
	cmd := &cobra.Command{
		Use:   "passwd <id>",
		Short: "Re-encrypt an account key under a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := c.password("Current password: ")
			if err != nil {
				return err
			}
			if next == "" {
				fmt.Fprint(c.prompt, "New password: ")
				line, err := c.in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				next = strings.TrimRight(line, "\r\n")
			}
			if err := c.app.Auth.ChangePassword(cmd.Context(), args[0], current, next); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&next, "new-password", "", "new password (read from stdin when omitted)")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account and its encrypted key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password("Password: ")
			if err != nil {
				return err
			}
			if err := c.app.Auth.DeleteAccount(cmd.Context(), args[0], pw); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <id>",
		Short: "Print the decrypted private key of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := c.password("Password: ")
			if err != nil {
				return err
			}
			key, err := c.app.Auth.UnlockKey(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, key)
			return nil
		},
	}
}

func (c *cli) idCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Convert identifiers between canonical and compact form",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "new",
			Short: "Mint a random identifier",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				canonical, compact := c.app.Codec.Mint()
				fmt.Fprintf(c.out, "%s %s\n", canonical, compact)
				return nil
			},
		},
		&cobra.Command{
			Use:   "encode <uuid>",
			Short: "Print the compact form of a canonical identifier",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				compact, err := c.app.Codec.EncodeString(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, compact)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decode <compact>",
			Short: "Print the canonical form of a compact identifier",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				canonical, err := c.app.Codec.DecodeString(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, canonical)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale encrypted keys whose account profile is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := c.app.Auth.SweepOrphans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "removed %d orphaned credentials\n", removed)
			return nil
		},
	}
}
