package flows

import (
	"context"
	"errors"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	// LoadRefreshToken returns the stored refresh token, or "" when there is none.
	LoadRefreshToken func(ctx context.Context) (string, error)
	// Revoke asks the backend to invalidate a refresh token.
	Revoke func(ctx context.Context, refreshToken string) error
	// Clear removes the local session.
	Clear func(ctx context.Context) error
}

// LogoutResult reports what a logout did. Err covers the local clear only.
type LogoutResult struct {
	Revoked   bool
	RevokeErr error
	Err       error
}

// RunLogout optionally revokes the stored refresh token and then clears the
// local session. Revocation failures never prevent the local clear.
func RunLogout(ctx context.Context, revoke bool, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	if revoke && deps.Revoke != nil {
		refreshToken, err := deps.LoadRefreshToken(ctx)
		switch {
		case err != nil:
			res.RevokeErr = err
		case refreshToken != "":
			if err := deps.Revoke(ctx, refreshToken); err != nil {
				res.RevokeErr = err
			} else {
				res.Revoked = true
			}
		}
	}

	if err := deps.Clear(ctx); err != nil {
		res.Err = errors.Join(errors.New("clear session"), err)
	}
	return res
}
