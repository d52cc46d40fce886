// Package token реализует маскировку коротких кодов: наружу уходит
// обратимо закодированный токен, внутри живёт код вида INS-XXXXXX.
package token

import (
	"encoding/base64"
	"strings"
)

// CodePrefix префикс всех коротких кодов
const CodePrefix = "INS-"

// Mask кодирует внутренний короткий код в публичный токен
func Mask(shortCode string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(shortCode))
}

// Unmask декодирует публичный токен обратно в короткий код.
// Если декодирование не удалось или результат не похож на наш код,
// токен возвращается как есть: публичная часть может быть и сырым кодом.
// Функция чистая и никогда не возвращает ошибку.
func Unmask(publicToken string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(publicToken)
	if err != nil {
		return publicToken
	}
	if !strings.HasPrefix(string(decoded), CodePrefix) {
		return publicToken
	}
	return string(decoded)
}
