package service

import (
	"errors"
	"fmt"
)

// ErrValidation — тело запроса или идентификатор датчика не прошли проверку.
var ErrValidation = errors.New("invalid reading")

// Stage — шаг конвейера, на котором произошла ошибка.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageEncrypt   Stage = "encrypt"
	StageStore     Stage = "store"
	StageLog       Stage = "log"
	StageBroadcast Stage = "broadcast"
)

// Component возвращает имя компонента, отвечающего за шаг.
func (s Stage) Component() string {
	switch s {
	case StageValidate:
		return "IngestionService"
	case StageEncrypt:
		return "ConditionEncryptor"
	case StageStore:
		return "BlobStore"
	case StageLog:
		return "ReadingLog"
	case StageBroadcast:
		return "Broadcaster"
	}
	return "unknown"
}

// StageError — ошибка конвейера с указанием шага.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf возвращает шаг, на котором упал конвейер, если err содержит StageError.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
