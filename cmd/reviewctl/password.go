package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/heartmarshall/proofdesk/internal/auth"
)

// Test seams.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a share-link password for the projects table",
	Long: "Reads a password from the terminal (or the first line of stdin when piped)\n" +
		"and prints its bcrypt hash.",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password, hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 10, "bcrypt cost")
	rootCmd.AddCommand(hashPasswordCmd)
}

func promptPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		first, err := readPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(prompt, "Repeat: ")
		second, err := readPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
