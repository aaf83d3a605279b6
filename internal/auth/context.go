package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoUserInContext is returned when a request context carries no
// authenticated user.
var ErrNoUserInContext = errors.New("no user ID in request context")

// --- Context Helper Functions ---

// GetUserIDFromContext retrieves the UserID (uuid.UUID) from the request
// context, as placed there by the JWT middleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, ErrNoUserInContext
	}
	return userID, nil
}
