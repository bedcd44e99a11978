package app

import "errors"

var (
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrNameTooLong              = errors.New("name too long")

	ErrEntryEmpty       = errors.New("entry needs content or gratitude")
	ErrEntryTooLong     = errors.New("entry content too long")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMood      = errors.New("invalid mood")
	ErrEntryNotFound    = errors.New("entry not found")
	ErrPrayerRequired   = errors.New("prayer request required")
	ErrInvalidCategory  = errors.New("invalid prayer category")
	ErrPrayerNotFound   = errors.New("prayer not found")
	ErrInvalidShareType = errors.New("invalid share type")
	ErrEmptyPost        = errors.New("post has nothing to share")

	// ErrPrayerAlreadyAnswered is returned when answering an answered prayer.
	// Answering is one-way.
	ErrPrayerAlreadyAnswered = errors.New("prayer already answered")

	ErrGuidanceNotConfigured    = errors.New("guidance generator not configured")
	ErrTranscriberNotConfigured = errors.New("transcriber not configured")
	ErrAudioRequired            = errors.New("audio data is required")
	ErrInvalidAudio             = errors.New("audio is not valid base64")
	ErrSearchNotConfigured      = errors.New("verse search not configured")
	ErrQueryRequired            = errors.New("query required")
)
