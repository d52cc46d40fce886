package token_test

import (
	"testing"

	"github.com/inspeaker/smartlink/internal/token"
	"github.com/stretchr/testify/assert"
)

// TestMaskUnmask_RoundTrip проверяет обратимость маскировки
func TestMaskUnmask_RoundTrip(t *testing.T) {
	code := "INS-A1B2C3"
	masked := token.Mask(code)

	assert.NotEqual(t, code, masked)
	assert.Equal(t, code, token.Unmask(masked))
}

// TestUnmask_RawCodeFallback проверяет, что сырой короткий код проходит как есть
func TestUnmask_RawCodeFallback(t *testing.T) {
	assert.Equal(t, "INS-A1B2C3", token.Unmask("INS-A1B2C3"))
}

// TestUnmask_GarbageFallback проверяет фоллбэк на невалидном base64
func TestUnmask_GarbageFallback(t *testing.T) {
	// '!' не входит в алфавит base64url — декодирование падает, токен идёт как есть
	assert.Equal(t, "not-base64!!", token.Unmask("not-base64!!"))
}

// TestUnmask_DecodableButWrongPrefix проверяет фоллбэк, когда декодированное
// значение не похоже на наш короткий код
func TestUnmask_DecodableButWrongPrefix(t *testing.T) {
	masked := token.Mask("XYZ-123456")
	assert.Equal(t, masked, token.Unmask(masked))
}

// TestUnmask_Empty пустой токен возвращается пустым
func TestUnmask_Empty(t *testing.T) {
	assert.Equal(t, "", token.Unmask(""))
}
