package config

import (
	"strconv"
	"time"
)

type AuthConfig interface {
	GetJWTSecret() string
	GetAuthCookieName() string
	GetLoginTokenExpiry() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetLoginSecretLength() int
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Auth) GetAuthCookieName() string {
	return GetEnv("AUTH_COOKIE", "magicauth")
}

// GetLoginTokenExpiry is how long an unapproved login request stays valid.
func (Auth) GetLoginTokenExpiry() time.Duration {
	return minutesEnv("LOGIN_TOKEN_EXPIRES", 120)
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return minutesEnv("JWT_TOKEN_EXPIRES", 15)
}

// GetRefreshTokenExpiry is the refresh token (and cookie) lifetime.
func (Auth) GetRefreshTokenExpiry() time.Duration {
	return minutesEnv("JWT_COOKIE_EXPIRES", 60*24*365)
}

func (Auth) GetLoginSecretLength() int {
	return 32 // 32 bytes = 256 bits
}

func minutesEnv(envVar string, defaultMinutes int) time.Duration {
	minutes := defaultMinutes
	if v := GetEnv(envVar, ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minutes = parsed
		}
	}
	return time.Duration(minutes) * time.Minute
}
