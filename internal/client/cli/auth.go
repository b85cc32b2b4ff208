package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/restosession/internal/client/client"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and logs in. Failures are reported through
// Session.LastError and printed.
func (a *App) Login(ctx context.Context) error {
	userName, err := GetRequiredText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	if err := a.session.Login(ctx, userName, password); err != nil {
		fmt.Fprintln(a.out, "Login unsuccessful:", a.session.Session().LastError)
		return err
	}

	if msg := a.session.Session().LastError; msg != "" {
		fmt.Fprintln(a.out, msg)
	}
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Register prompts for the account fields and creates the account. The
// user is logged in only if the server returns a token.
func (a *App) Register(ctx context.Context) error {
	email, err := GetRequiredText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "Enter phone (optional)", a.out)
	if err != nil {
		return err
	}

	req := client.RegisterRequest{Email: email, Password: password, FullName: fullName, Phone: phone}
	if err := a.session.Register(ctx, req); err != nil {
		fmt.Fprintln(a.out, "Registration unsuccessful:", a.session.Session().LastError)
		return err
	}

	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Registered and logged in")
	} else {
		fmt.Fprintln(a.out, "Registered, please log in")
	}
	return nil
}

// Logout ends the session. It never fails.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
