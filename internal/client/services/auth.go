// Package services contains application services for the SideQuest client:
// authentication, hunt management, and dashboards. They validate input
// locally, make sure a CSRF token is held before mutating calls, and keep the
// local play state in step with the backend.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/sidequest/internal/client/client"
	"github.com/dmitrijs2005/sidequest/internal/client/models"
)

const minPasswordLen = 6

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login, Signup, GoogleLogin, Auth0Login: establish a cookie session and
//     return the signed-in user.
//   - Logout: end the session.
//   - Me: return the signed-in user, or nil when nobody is signed in.
//   - UpdateProfile: change profile fields of the signed-in user.
type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*models.User, error)
	Signup(ctx context.Context, in SignupInput) (*models.User, error)
	GoogleLogin(ctx context.Context, idToken string) (*models.User, error)
	Auth0Login(ctx context.Context, p client.Auth0Profile) (*models.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, p client.ProfileUpdate) (*models.User, error)
}

// SignupInput is the signup form, confirmation included.
type SignupInput struct {
	Username        string
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
}

func (in SignupInput) validate() error {
	var v validator

	switch n := utf8.RuneCountInString(in.Username); {
	case n == 0:
		v.add("username", "Username is required")
	case n < 3 || n > 20:
		v.add("username", "Username must be 3-20 characters")
	}
	if in.FirstName == "" {
		v.add("firstname", "First name is required")
	}
	if in.LastName == "" {
		v.add("lastname", "Last name is required")
	}
	if in.Email == "" {
		v.add("email", "Email is required")
	}
	validatePassword(&v, in.Password)

	switch {
	case in.ConfirmPassword == "":
		v.add("confirmPassword", "Please confirm your password")
	case in.Password != in.ConfirmPassword:
		v.add("confirmPassword", "Passwords do not match")
	}
	return v.err()
}

func validatePassword(v *validator, pw string) {
	switch {
	case pw == "":
		v.add("password", "Password is required")
	case len(pw) < minPasswordLen:
		v.add("password", fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
}

type authService struct {
	client client.Client
}

func NewAuthService(c client.Client) AuthService {
	return &authService{client: c}
}

// Login signs in by username or email.
func (a *authService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)

	var v validator
	if identifier == "" {
		v.add("email", "Email is required")
	}
	validatePassword(&v, password)
	if err := v.err(); err != nil {
		return nil, err
	}

	if _, err := a.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	u, err := a.client.Login(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return u, nil
}

func (a *authService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := a.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	u, err := a.client.Signup(ctx, client.SignupRequest{
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return u, nil
}

// GoogleLogin exchanges a Google ID token for a session.
func (a *authService) GoogleLogin(ctx context.Context, idToken string) (*models.User, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, &ValidationError{Fields: map[string]string{"id_token": "Google ID token is required"}}
	}
	if _, err := a.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("google login: %w", err)
	}
	u, err := a.client.GoogleLogin(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("google login: %w", err)
	}
	return u, nil
}

func (a *authService) Auth0Login(ctx context.Context, p client.Auth0Profile) (*models.User, error) {
	var v validator
	if strings.TrimSpace(p.Auth0ID) == "" {
		v.add("auth0Id", "Auth0 id is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		v.add("email", "Email is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := a.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("auth0 login: %w", err)
	}
	u, err := a.client.Auth0Login(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("auth0 login: %w", err)
	}
	return u, nil
}

func (a *authService) Logout(ctx context.Context) error {
	if _, err := a.client.InitCSRF(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := a.client.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Me treats 401 as "not signed in" rather than an error.
func (a *authService) Me(ctx context.Context) (*models.User, error) {
	u, err := a.client.Me(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return u, nil
}

func (a *authService) UpdateProfile(ctx context.Context, p client.ProfileUpdate) (*models.User, error) {
	if p.Password != "" {
		var v validator
		validatePassword(&v, p.Password)
		if err := v.err(); err != nil {
			return nil, err
		}
	}
	if _, err := a.client.InitCSRF(ctx); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	u, err := a.client.UpdateProfile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}
