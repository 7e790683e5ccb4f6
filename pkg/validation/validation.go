package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxIdentifierLength  = 128
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MaxViewersLimit      = 100
)

var (
	EmailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	UsernameRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	IdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)
)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > 254 {
		return fmt.Errorf("email is too long (max 254 characters)")
	}
	if !EmailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

// ValidateIdentifier checks sport, game, session and connection ids.
func ValidateIdentifier(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, MaxIdentifierLength)
	}
	if !IdentifierRegex.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

func ValidateSessionTitle(title string) error {
	if err := ValidateNonEmptyString(title, "title"); err != nil {
		return err
	}
	return ValidateStringLength(strings.TrimSpace(title), 1, MaxTitleLength, "title")
}

func ValidateSessionDescription(description string) error {
	return ValidateStringLength(description, 0, MaxDescriptionLength, "description")
}

func ValidateMaxViewers(maxViewers int) error {
	if maxViewers < 1 {
		return fmt.Errorf("maxViewers must be at least 1")
	}
	if maxViewers > MaxViewersLimit {
		return fmt.Errorf("maxViewers must be at most %d", MaxViewersLimit)
	}
	return nil
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength counts runes, not bytes.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
