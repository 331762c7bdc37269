package errors

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidTicket      = errors.New("invalid or expired ticket")
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrInvalidName        = errors.New("invalid name")
	ErrWeakPassword       = errors.New("password too short")
	ErrNameTaken          = errors.New("name already taken")
	ErrUserNotFound       = errors.New("user not found")

	ErrMatchNotFound = errors.New("match not found")

	ErrInvalidState       = errors.New("invalid match state for this command")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrNotParticipant     = errors.New("not a participant of this match")
	ErrSpaceOccupied      = errors.New("space already occupied")
	ErrInvalidSpace       = errors.New("invalid space")
	ErrInvalidHandIndex   = errors.New("invalid hand index")
	ErrCardAlreadyPlayed  = errors.New("card already played")
	ErrInvalidPick        = errors.New("invalid card pick")
	ErrAlreadyPicked      = errors.New("cards already picked")
	ErrCardNotOwned       = errors.New("card not owned")
	ErrNotEnoughCards     = errors.New("not enough cards")
	ErrCannotJoinOwnMatch = errors.New("cannot join your own match")
	ErrMatchFull          = errors.New("match is full")
	ErrTooManyPending     = errors.New("too many pending matches with the same rules")
	ErrInvalidRule        = errors.New("invalid rule")
	ErrInvalidCommand     = errors.New("invalid command")

	ErrNotImplemented = errors.New("not implemented")
)

var validationErrors = []error{
	ErrInvalidState,
	ErrNotYourTurn,
	ErrNotParticipant,
	ErrSpaceOccupied,
	ErrInvalidSpace,
	ErrInvalidHandIndex,
	ErrCardAlreadyPlayed,
	ErrInvalidPick,
	ErrAlreadyPicked,
	ErrCardNotOwned,
	ErrNotEnoughCards,
	ErrCannotJoinOwnMatch,
	ErrMatchFull,
	ErrTooManyPending,
	ErrInvalidRule,
	ErrInvalidCommand,
	ErrInvalidCredentials,
	ErrInvalidName,
	ErrWeakPassword,
	ErrNameTaken,
}

// IsValidation reports whether err was caused by a rejected command rather
// than a failing collaborator.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
