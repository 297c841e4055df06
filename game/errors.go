package game

import "fmt"

// ErrorKind 规则错误分类。提交期的违规立即返回，绝不改动状态。
type ErrorKind string

const (
	ErrInvalidAction        ErrorKind = "invalid_action"
	ErrInvalidPhase         ErrorKind = "invalid_phase"
	ErrInvalidTarget        ErrorKind = "invalid_target"
	ErrCardNotFound         ErrorKind = "card_not_found"
	ErrCardNotUsable        ErrorKind = "card_not_usable"
	ErrAttackQuotaFull      ErrorKind = "attack_quota_full"
	ErrPlayerAlreadyDead    ErrorKind = "player_already_dead"
	ErrWitchKillerOnly      ErrorKind = "witch_killer_only"
	ErrNotWitchKillerHolder ErrorKind = "not_witch_killer_holder"
	ErrGameEnded            ErrorKind = "game_ended"
)

// GameError is the typed rejection returned for submission-time rule violations.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a GameError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ge, ok := err.(*GameError)
	return ok && ge.Kind == kind
}
