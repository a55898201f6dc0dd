package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sidequest/internal/client/services"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login signs in with a username or email. The identifier may be given as
// the first argument; the password is always prompted.
func (a *App) Login(ctx context.Context, args []string) error {
	var (
		identifier string
		err        error
	)
	if len(args) > 0 {
		identifier = args[0]
	} else if identifier, err = getSimpleText(a.reader, "Enter username or email", a.out); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.authService.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	a.setUser(u)
	printlnFn("Welcome,", u.DisplayName())
	return nil
}

// Signup prompts for the signup form and creates an account. The form is
// validated locally before anything is sent.
func (a *App) Signup(ctx context.Context, _ []string) error {
	var in services.SignupInput
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Username (3-20 characters)", &in.Username},
		{"First name", &in.FirstName},
		{"Last name", &in.LastName},
		{"Email", &in.Email},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	var err error
	if in.Password, err = getPassword(a.out); err != nil {
		return err
	}
	printlnFn("Confirm password")
	if in.ConfirmPassword, err = getPassword(a.out); err != nil {
		return err
	}

	u, err := a.authService.Signup(ctx, in)
	if err != nil {
		return err
	}
	a.setUser(u)
	printlnFn("Account created. Welcome,", u.DisplayName())
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.setUser(nil)
	printlnFn("Signed out")
	return nil
}

func (a *App) Me(ctx context.Context, _ []string) error {
	u, err := a.authService.Me(ctx)
	if err != nil {
		return err
	}
	a.setUser(u)
	if u == nil {
		printlnFn("Not signed in")
		return nil
	}
	printlnFn(fmt.Sprintf("%s (id %d)", u.DisplayName(), u.ID))
	return nil
}
