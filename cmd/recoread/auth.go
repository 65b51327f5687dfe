package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/recoread/recoread-client/internal/domain"
)

func runRegister(ctx context.Context, e *env, args []string) error {
	fs := newFlags("register")
	username := fs.String("username", "", "username (3-50 characters)")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (read from stdin when empty)")
	name := fs.String("name", "", "full name")
	if err := parse(fs, args); err != nil {
		return err
	}

	pw := *password
	if pw == "" {
		pw = e.readLine("Password: ")
	}

	session, err := e.client.Register(ctx, domain.Registration{
		Username: strings.TrimSpace(*username),
		Email:    strings.TrimSpace(*email),
		Password: pw,
		FullName: strings.TrimSpace(*name),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Registered and signed in as %s\n", session.User.Username)
	return nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login")
	user := fs.String("user", "", "username or email")
	password := fs.String("password", "", "password (read from stdin when empty)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*user) == "" {
		return errUsage
	}

	pw := *password
	if pw == "" {
		pw = e.readLine("Password: ")
	}

	session, err := e.client.Login(ctx, domain.Credentials{
		UsernameOrEmail: strings.TrimSpace(*user),
		Password:        pw,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Signed in as %s\n", session.User.Username)
	return nil
}

func runLogout(_ context.Context, e *env, args []string) error {
	if err := parse(newFlags("logout"), args); err != nil {
		return err
	}
	if err := e.client.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags("whoami"), args); err != nil {
		return err
	}
	if !e.client.SignedIn() {
		fmt.Fprintln(e.out, "Not signed in")
		return nil
	}

	user, err := e.client.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "%s <%s>", user.Username, user.Email)
	if user.FullName != "" {
		fmt.Fprintf(e.out, " (%s)", user.FullName)
	}
	fmt.Fprintln(e.out)
	return nil
}

// readLine prompts on stdout and reads one line from stdin.
func (e *env) readLine(prompt string) string {
	fmt.Fprint(e.out, prompt)
	line, _ := bufio.NewReader(e.in).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
