// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mmeshcher/petit-coffre/internal/model"
)

// MinPasswordLength задаёт минимальную длину пароля в символах.
const MinPasswordLength = 4

const maxUsernameLength = 64

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// IsValidUsername проверяет имя пользователя: непустое, без пробелов по краям
// и управляющих символов, не длиннее 64 символов.
func IsValidUsername(username string) bool {
	if username == "" || strings.TrimSpace(username) != username {
		return false
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return false
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// IsValidMonthKey проверяет ключ месяца в формате YYYY-MM.
func IsValidMonthKey(key string) bool {
	if len(key) != len(model.MonthKeyLayout) {
		return false
	}
	_, err := time.Parse(model.MonthKeyLayout, key)
	return err == nil
}
