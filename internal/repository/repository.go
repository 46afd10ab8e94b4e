// Package repository содержит хранилища учётных записей и финансовых документов:
// JSON-файлы на диске и PostgreSQL.
package repository

import "errors"

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим именем.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
)
