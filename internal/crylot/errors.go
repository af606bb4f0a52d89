package crylot

import (
	"github.com/pkg/errors"
)

// Kind classifica as rejeições do contrato
type Kind int

const (
	KindInternal Kind = iota
	KindNotAuthorized
	KindInvalidBound
	KindBetTooLow
	KindBetTooHigh
	KindInvalidGuess
	KindInvalidAmount
	KindUnknownRequest
	KindNotCoordinator
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthorized:
		return "NotAuthorized"
	case KindInvalidBound:
		return "InvalidBound"
	case KindBetTooLow:
		return "BetTooLow"
	case KindBetTooHigh:
		return "BetTooHigh"
	case KindInvalidGuess:
		return "InvalidGuess"
	case KindInvalidAmount:
		return "InvalidAmount"
	case KindUnknownRequest:
		return "UnknownRequest"
	case KindNotCoordinator:
		return "NotCoordinator"
	default:
		return "Internal"
	}
}

// Error é uma rejeição da chamada inteira, com motivo legível
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

var (
	ErrNotAuthorized  = &Error{KindNotAuthorized, "You are not an admin"}
	ErrMinBetZero     = &Error{KindInvalidBound, "The minimum bet must be higher than 0"}
	ErrMinAboveMax    = &Error{KindInvalidBound, "The minimum bet must be lower or equal than the maximum bet"}
	ErrMaxBelowMin    = &Error{KindInvalidBound, "The maximum bet must be higher than the minimum bet"}
	ErrBetTooLow      = &Error{KindBetTooLow, "The bet must be higher or equal than min bet"}
	ErrBetTooHigh     = &Error{KindBetTooHigh, "The bet must be lower or equal than max bet"}
	ErrInvalidGuess   = &Error{KindInvalidGuess, "The guess must be between 1 and 100"}
	ErrInvalidAmount  = &Error{KindInvalidAmount, "The amount must be higher than 0"}
	ErrUnknownRequest = &Error{KindUnknownRequest, "Unknown randomness request"}
	ErrNotCoordinator = &Error{KindNotCoordinator, "Only the VRF coordinator can fulfill"}
	ErrOwnerRevoke    = &Error{KindNotAuthorized, "The owner cannot be revoked"}
	ErrNoFailedPayout = &Error{KindUnknownRequest, "No failed payout for this request"}

	// ErrTransferFailed envolve a falha do Payer; a aposta já foi resolvida
	ErrTransferFailed = errors.New("payout transfer failed")

	// errDuplicateRequest indica violação de invariante do ledger (bug)
	errDuplicateRequest = errors.New("ledger: duplicate request id")
)

// KindOf retorna o Kind de qualquer erro (envolvido ou não)
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
